package config

// DefaultPort is the TCP port both CLIs default to when -p is omitted.
const DefaultPort = 8080

// scanForFlagValue looks for "-name value" or "-name=value" in args without
// registering name on a flag.FlagSet, so the real flag set (which doesn't
// yet know about every possible flag until its own registration calls have
// all run) can still be parsed in a single pass afterwards. Used only to
// pull the optional -c defaults-file path out before the real parse.
func scanForFlagValue(args []string, name string) string {
	prefix := "-" + name
	for i, a := range args {
		if a == prefix && i+1 < len(args) {
			return args[i+1]
		}
		if len(a) > len(prefix)+1 && a[:len(prefix)+1] == prefix+"=" {
			return a[len(prefix)+1:]
		}
	}
	return ""
}
