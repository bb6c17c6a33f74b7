// Package curl turns a pasted curl command line into a fetch descriptor.
package curl

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// Command is a parsed curl invocation.
type Command struct {
	Descriptor *http.Descriptor
	// Insecure is set by -k; it configures the client, not the request.
	Insecure bool
}

// flags that consume the next token
var valueFlags = map[string]bool{
	"-X": true, "--request": true,
	"-H": true, "--header": true,
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true, "--data-ascii": true,
	"-u": true, "--user": true,
	"-A": true, "--user-agent": true,
	"-e": true, "--referer": true,
	"-b": true, "--cookie": true,
	"-m": true, "--max-time": true,
	"-o": true, "--output": true,
	"--url": true,
}

// Parse parses a curl command. Without -L the descriptor uses the manual
// redirect policy, matching curl's own default.
func Parse(cmdline string) (*Command, error) {
	tokens := tokenize(strings.TrimSpace(joinContinuations(cmdline)))
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no URL specified")
	}

	var (
		method   string
		target   string
		body     *string
		follow   bool
		headOnly bool
		cmd      = &Command{}
		d        = &http.Descriptor{}
	)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if valueFlags[token] {
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("missing value for %s", token)
			}
			i++
			value := tokens[i]

			switch token {
			case "-X", "--request":
				method = value
			case "-H", "--header":
				name, v, ok := strings.Cut(value, ":")
				if !ok {
					return nil, fmt.Errorf("invalid header %q", value)
				}
				d.SetHeader(strings.TrimSpace(name), strings.TrimSpace(v))
			case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
				if body != nil {
					// curl joins repeated data with '&'
					joined := *body + "&" + value
					body = &joined
				} else {
					body = &value
				}
			case "-u", "--user":
				d.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(value)))
			case "-A", "--user-agent":
				d.SetHeader("User-Agent", value)
			case "-e", "--referer":
				d.SetReferrer(value)
			case "-b", "--cookie":
				d.SetHeader("Cookie", value)
			case "-m", "--max-time":
				var seconds float64
				if _, err := fmt.Sscanf(value, "%g", &seconds); err != nil || seconds <= 0 {
					return nil, fmt.Errorf("invalid --max-time %q", value)
				}
				d.TimeoutMs = int(seconds * 1000)
			case "--url":
				target = value
			}
			continue
		}

		switch token {
		case "-k", "--insecure":
			cmd.Insecure = true
		case "-L", "--location":
			follow = true
		case "-I", "--head":
			headOnly = true
		default:
			if strings.HasPrefix(token, "-") {
				// unknown switch without a value (--compressed, -s, -v, ...)
				continue
			}
			if target == "" {
				target = token
			}
		}
	}

	if target == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	switch {
	case method != "":
	case headOnly:
		method = "HEAD"
	case body != nil:
		method = "POST"
	default:
		method = "GET"
	}

	d.URL = target
	d.Method = method
	if body != nil {
		d.SetBody(*body)
		if !hasHeader(d.Headers, "Content-Type") {
			d.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if !follow {
		d.SetRedirect(http.RedirectManual)
	}

	cmd.Descriptor = d
	return cmd, nil
}

func hasHeader(headers []http.Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// joinContinuations folds shell line continuations into one line
func joinContinuations(s string) string {
	s = strings.ReplaceAll(s, "\\\r\n", " ")
	return strings.ReplaceAll(s, "\\\n", " ")
}

// tokenize splits a command line into words, honoring quotes and escapes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false
	started := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
			started = true
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
				started = true
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
				started = true
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t', '\n', '\r':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if started {
		tokens = append(tokens, current.String())
	}

	return tokens
}
