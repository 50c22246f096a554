package sources

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// WordList is the newline-delimited file of candidate search terms.
// It is re-read on every call so edits take effect at the next refresh.
type WordList struct {
	Path string
}

// Words returns the non-blank, trimmed lines of the file in file order.
func (w WordList) Words() ([]string, error) {
	f, err := os.Open(w.Path)
	if err != nil {
		return nil, fmt.Errorf("word list: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			words = append(words, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("word list %s: %w", w.Path, err)
	}
	return words, nil
}

// RandomTerms builds n search terms, each joining size distinct words
// drawn at random from the list.
func (w WordList) RandomTerms(rng *rand.Rand, n, size int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	words, err := w.Words()
	if err != nil {
		return nil, err
	}
	return CombineWords(rng, words, n, size), nil
}

// CombineWords returns n phrases of size distinct random words each.
// When the list holds fewer than size words every phrase uses all of them.
func CombineWords(rng *rand.Rand, words []string, n, size int) []string {
	if len(words) == 0 || n <= 0 || size <= 0 {
		return nil
	}
	size = min(size, len(words))

	terms := make([]string, 0, n)
	for range n {
		picked := make(map[int]bool, size)
		parts := make([]string, 0, size)
		for len(parts) < size {
			i := rng.IntN(len(words))
			if picked[i] {
				continue
			}
			picked[i] = true
			parts = append(parts, words[i])
		}
		terms = append(terms, strings.Join(parts, " "))
	}
	return terms
}

// SampleWords returns up to n distinct words chosen at random.
func SampleWords(rng *rand.Rand, words []string, n int) []string {
	if n > len(words) {
		n = len(words)
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(words))[:n] {
		out = append(out, words[i])
	}
	return out
}
