package index

// Config controls tokenization. A Config is fixed at construction and only
// replaced through Index.UpdateConfig; already-indexed items are not
// re-tokenized when it changes.
type Config struct {
	MinWordLength   int
	MaxWordsPerItem int
	Stopwords       []string
}

// ConfigPatch is a partial Config update. Nil fields preserve the previous
// value.
type ConfigPatch struct {
	MinWordLength   *int
	MaxWordsPerItem *int
	Stopwords       []string
}

// merge returns a new Config with the patch applied. Out-of-range values are
// clamped to the smallest sane value rather than rejected.
func (c Config) merge(patch ConfigPatch) Config {
	next := c
	if patch.MinWordLength != nil {
		next.MinWordLength = *patch.MinWordLength
		if next.MinWordLength < 1 {
			next.MinWordLength = 1
		}
	}
	if patch.MaxWordsPerItem != nil {
		next.MaxWordsPerItem = *patch.MaxWordsPerItem
		if next.MaxWordsPerItem < 1 {
			next.MaxWordsPerItem = 1
		}
	}
	if patch.Stopwords != nil {
		next.Stopwords = append([]string(nil), patch.Stopwords...)
	}
	return next
}
