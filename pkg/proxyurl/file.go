package proxyurl

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LineError reports a line of a proxy list that could not be parsed.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// LoadFile reads one proxy URL per line. Blank lines and lines starting with '#' are
// skipped; malformed lines are returned as LineErrors and do not abort the load.
func LoadFile(path string) ([]Parsed, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open proxy list %s: %w", path, err)
	}
	defer f.Close()

	var (
		proxies []Parsed
		bad     []LineError
	)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := Parse(line)
		if err != nil {
			bad = append(bad, LineError{Line: lineNum, Err: err})
			continue
		}
		proxies = append(proxies, p)
	}
	if err := scanner.Err(); err != nil {
		return proxies, bad, fmt.Errorf("read proxy list %s: %w", path, err)
	}

	return proxies, bad, nil
}
