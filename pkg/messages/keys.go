package messages

// Key identifies a message and the tags it accepts.
type Key struct {
	code string
	tags []string
}

// Code returns the YAML key of the message.
func (k Key) Code() string { return k.code }

// Tags returns the placeholders replaced by RetrieveSingle, in order.
func (k Key) Tags() []string { return k.tags }

func (k Key) String() string { return k.code }

var (
	Login             = Key{code: "login"}
	LoginPrompt       = Key{code: "login_msg"}
	RegisterPrompt    = Key{code: "reg_msg"}
	Registered        = Key{code: "registered"}
	WrongPassword     = Key{code: "wrong_pwd"}
	UnknownUser       = Key{code: "user_unknown"}
	AlreadyRegistered = Key{code: "user_regged"}
	AlreadyLoggedIn   = Key{code: "logged_in"}
	NotLoggedIn       = Key{code: "not_logged_in"}
	Logout            = Key{code: "logout"}
	PasswordTooShort  = Key{code: "pass_len"}
	PasswordIsName    = Key{code: "password_error_nick"}
	SessionResumed    = Key{code: "valid_session"}
	SameNickOnline    = Key{code: "same_nick"}
	DenyChat          = Key{code: "deny_chat"}
	DenyCommand       = Key{code: "deny_command"}
	AddEmail          = Key{code: "add_email"}
	Error             = Key{code: "error"}
	Reloaded          = Key{code: "reload"}
	Purged            = Key{code: "purge", tags: []string{"%count%", "%days%"}}
	Welcome           = Key{code: "welcome", tags: []string{"{PLAYER}", "{ONLINE}", "{LOGINS}", "{WORLD}", "{VERSION}", "{IP}"}}
)

// AllKeys returns every known key.
func AllKeys() []Key {
	return []Key{
		Login, LoginPrompt, RegisterPrompt, Registered, WrongPassword, UnknownUser,
		AlreadyRegistered, AlreadyLoggedIn, NotLoggedIn, Logout, PasswordTooShort,
		PasswordIsName, SessionResumed, SameNickOnline, DenyChat, DenyCommand,
		AddEmail, Error, Reloaded, Purged, Welcome,
	}
}
