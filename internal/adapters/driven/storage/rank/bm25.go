package rank

import "math"

// BM25 parameters.
const (
	BM25K1 = 1.2
	BM25B  = 0.75
)

// BM25 scores one document against query terms.
// df maps a term to the number of documents containing it, n is the corpus size
// and avgLen the mean document length in terms.
func BM25(query []string, tf map[string]int, docLen int, df map[string]int, n int, avgLen float64) float64 {
	if n == 0 || avgLen == 0 {
		return 0
	}
	var score float64
	seen := make(map[string]bool, len(query))
	for _, term := range query {
		if seen[term] {
			continue
		}
		seen[term] = true
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		d := float64(df[term])
		idf := math.Log(1 + (float64(n)-d+0.5)/(d+0.5))
		norm := f + BM25K1*(1-BM25B+BM25B*float64(docLen)/avgLen)
		score += idf * f * (BM25K1 + 1) / norm
	}
	return score
}

// TermFrequencies counts term occurrences.
func TermFrequencies(terms []string) map[string]int {
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}
