package export

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// namer hands out unique archive entry names within one namespace. When
// normalizing, collisions are detected on the NFC-normalized, case-folded
// form so "Seite_1.PNG" and "seite_1.png" cannot coexist.
type namer struct {
	normalize bool
	taken     map[string]struct{}
}

func newNamer(normalize bool) *namer {
	return &namer{normalize: normalize, taken: make(map[string]struct{})}
}

func (n *namer) key(name string) string {
	if !n.normalize {
		return name
	}
	return cases.Fold().String(norm.NFC.String(name))
}

// claim reserves a unique name, suffixing the stem with _N on collision.
func (n *namer) claim(name string) string {
	if n.normalize {
		name = norm.NFC.String(name)
	}
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, ok := n.taken[n.key(candidate)]; !ok {
			n.taken[n.key(candidate)] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}
