// Package optstr parses mount option strings: comma-separated names with
// optional values, where a value may be wrapped in double quotes to protect
// embedded commas ("opt=\"a,b\",ro").
package optstr

// Option is one name[=value] element of an option string. HasValue
// distinguishes "name=" (empty value) from a bare "name".
type Option struct {
	Name     string
	Value    string
	HasValue bool
}

// Parse splits an option string into its elements in order. Quoted values
// keep their quotes; callers decide whether to strip them. Empty elements
// are skipped. The input is never modified.
func Parse(optstr string) []Option {
	var opts []Option

	s := optstr
	for len(s) > 0 {
		eq := -1
		end := -1
		inQuote := false

	scan:
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '"':
				// Quotes only protect commas inside a value.
				if eq >= 0 {
					inQuote = !inQuote
				}
			case '=':
				if eq < 0 {
					eq = i
				}
			case ',':
				if !inQuote {
					end = i
					break scan
				}
			}
		}

		elem := s
		if end >= 0 {
			elem = s[:end]
			s = s[end+1:]
		} else {
			s = ""
		}
		if elem == "" {
			continue
		}

		opt := Option{Name: elem}
		if eq >= 0 {
			opt.Name = elem[:eq]
			opt.Value = elem[eq+1:]
			opt.HasValue = true
		}
		opts = append(opts, opt)
	}

	return opts
}

// Get returns the raw value of the first occurrence of the named option and
// whether the option was present at all. A quoted value is returned with its
// quotes intact.
func Get(optstr, name string) (string, bool) {
	for _, o := range Parse(optstr) {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}
