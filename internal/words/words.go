// internal/words/words.go
//
// Word list management for the game engine.
//
// Responsibilities:
//   - Load the target word list from an environment-provided file or fall
//     back to the embedded default list.
//   - Supply Random for uniform word selection and Count for diagnostics.
//
// Initialization behavior (Init):
//   1. If WORDS_FILE is set, load words from that file.
//   2. Otherwise fall back to the embedded default list.
//
// Constraints:
//   - Words must be alphabetic (a-z) and at least two letters long.
//   - Lists are normalized to lowercase.
//   - Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
)

// --- embedded default list (ensures the server runs with no files configured) ---

//go:embed default_words.txt
var embeddedWords string

var (
	initOnce   sync.Once
	wordList   []string
	initialErr error
)

// Init loads the word list exactly once.
// Returns an error if the list ends up empty.
func Init() error {
	initOnce.Do(func() {
		if path := os.Getenv("WORDS_FILE"); path != "" {
			list, err := readWordFile(path)
			if err != nil {
				initialErr = err
				return
			}
			wordList = list
		} else {
			wordList = normalizeLines(embeddedWords)
		}
		if len(wordList) == 0 {
			initialErr = errors.New("words: word list is empty")
		}
	})
	return initialErr
}

// readWordFile loads one word per line from a file,
// lowercases, trims, and keeps only valid alphabetic words.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w, ok := normalize(sc.Text()); ok {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

// normalizeLines processes an embedded multiline string
// into a slice of valid lowercase words.
func normalizeLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if w, ok := normalize(line); ok {
			out = append(out, w)
		}
	}
	return out
}

// normalize trims and lowercases a candidate word and reports validity.
func normalize(s string) (string, bool) {
	w := strings.TrimSpace(strings.ToLower(s))
	return w, len(w) >= 2 && isAlpha(w)
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Random returns a cryptographically random word from the list.
// The index upper bound is exclusive. If the list is not loaded yet or
// empty, falls back to "ability".
func Random() string {
	if len(wordList) == 0 {
		return "ability"
	}
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(len(wordList))))
	return wordList[nBig.Int64()]
}

// Count returns the number of loaded words.
func Count() int {
	return len(wordList)
}
