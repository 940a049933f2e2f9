package messages

import "strconv"

// Info carries the values substituted into the Welcome message.
type Info struct {
	Player  string
	Online  int
	Logins  int
	World   string
	Version string
	IP      string
}

// Replacements returns the values in the order of Welcome.Tags().
func (i Info) Replacements() []string {
	return []string{
		i.Player,
		strconv.Itoa(i.Online),
		strconv.Itoa(i.Logins),
		i.World,
		i.Version,
		i.IP,
	}
}
