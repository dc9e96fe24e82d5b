package agent

import (
	"bufio"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Aliases maps hostnames to the names or addresses they should resolve as,
// in the format of the HOSTALIASES file: "alias target" per line, '#'
// starts a comment. Later lines override earlier ones.
type Aliases map[string]string

// LoadAliases reads the file named by HOSTALIASES. A missing variable or
// file yields an empty table.
func LoadAliases() Aliases {
	path := os.Getenv("HOSTALIASES")
	if path == "" {
		return Aliases{}
	}
	f, err := os.Open(path)
	if err != nil {
		log.Debugf("HOSTALIASES %s not readable: %v", path, err)
		return Aliases{}
	}
	defer f.Close()
	return ParseAliases(f)
}

func ParseAliases(r io.Reader) Aliases {
	out := Aliases{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		words := strings.Fields(line)
		if len(words) == 2 {
			out[words[0]] = words[1]
		}
	}
	return out
}

// Resolve returns the alias of host, or host itself.
func (a Aliases) Resolve(host string) string {
	if v, ok := a[host]; ok {
		return v
	}
	return host
}
