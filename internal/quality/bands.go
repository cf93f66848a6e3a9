package quality

import "math"

// band maps an inclusive upper bound to a score. Ordered band tables replace
// nested threshold branching: lookup walks the table and returns the score of
// the first band whose bound covers the value.
type band struct {
	upTo  float64
	score float64
}

func bandScore(v float64, bands []band) float64 {
	for _, b := range bands {
		if v <= b.upTo {
			return b.score
		}
	}
	return bands[len(bands)-1].score
}

// Text-length bands for the content sub-score (characters). The optimal band
// covers typical statute articles and decision excerpts.
var contentLengthBands = []band{
	{upTo: 100, score: 0.05},
	{upTo: 500, score: 0.3},
	{upTo: 1000, score: 0.6},
	{upTo: 8000, score: 1.0},
	{upTo: 20000, score: 0.8},
	{upTo: math.Inf(1), score: 0.6},
}

// Document-age bands for the freshness sub-score (days since publication).
var freshnessBands = []band{
	{upTo: 365, score: 1.0},
	{upTo: 730, score: 0.8},
	{upTo: 1825, score: 0.6},
	{upTo: 3650, score: 0.4},
	{upTo: math.Inf(1), score: 0.2},
}

// freshnessDefault applies when the publication date is unknown.
const freshnessDefault = 0.3

// Citation-count bands for the legal-accuracy sub-score. Zero citations and
// citation stuffing are both penalised; a moderate count scores highest.
var citationBands = []band{
	{upTo: 0, score: 0.2},
	{upTo: 2, score: 0.6},
	{upTo: 15, score: 1.0},
	{upTo: 30, score: 0.7},
	{upTo: math.Inf(1), score: 0.4},
}

// authorityTable maps known authoritative source names (folded) to a
// reliability constant. Unknown sources fall back to authorityDefault.
var authorityTable = map[string]float64{
	"ansr":                                        0.95,
	"autoridade nacional de seguranca rodoviaria": 0.95,
	"diario da republica":                         0.95,
	"dre":                                         0.95,
	"imt":                                         0.90,
	"instituto da mobilidade e dos transportes":   0.90,
	"codigo da estrada":                           0.90,
	"tribunal constitucional":                     0.90,
	"supremo tribunal de justica":                 0.90,
	"tribunal da relacao":                         0.85,
	"dgsi":                                        0.85,
	"pgdl":                                        0.85,
	"psp":                                         0.70,
	"gnr":                                         0.70,
	"emel":                                        0.65,
	"camara municipal":                            0.60,
}

const authorityDefault = 0.3

// officialSources earn the source-reliability bonus on top of their
// authority constant.
var officialSources = map[string]struct{}{
	"ansr":                {},
	"imt":                 {},
	"diario da republica": {},
	"dre":                 {},
}
