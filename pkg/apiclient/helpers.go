package apiclient

import (
	"context"
	"fmt"
	"net/url"
)

// getResource performs a GET request and decodes the body into a T.
func getResource[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var result T
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listResources performs a GET request and decodes the body into a []T.
func listResources[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var results []T
	if err := c.get(ctx, path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// createResource performs a POST request and decodes the body into a T.
func createResource[T any](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// resourcePath formats a path template, escaping every argument.
//
//	path := resourcePath("/api/v1/players/%s", "Steve")
func resourcePath(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return fmt.Sprintf(format, escaped...)
}
