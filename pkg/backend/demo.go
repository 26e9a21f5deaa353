package backend

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/go-go-golems/plotto/pkg/frames"
)

// intent is the coarse question class the demo generator answers.
type intent string

const (
	intentMarketSummary intent = "market_summary"
	intentCompanyTrend  intent = "multi_company_trend"
	intentPrediction    intent = "prediction"
)

var trackedSymbols = []string{"^GSPC", "AAPL", "MSFT", "GOOGL", "AMZN"}

// recharts default palette, kept so the demo output renders the same as the
// hosted charts it imitates.
var palette = []string{"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#8884d8"}

func classify(prompt string) intent {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "predict") || strings.Contains(p, "forecast") || strings.Contains(p, "next"):
		return intentPrediction
	case strings.Contains(p, "compare") || strings.Contains(p, "trend") || strings.Contains(p, " vs"):
		return intentCompanyTrend
	default:
		return intentMarketSummary
	}
}

func strptr(s string) *string { return &s }

// answer is the fully-formed response the script builder slices into
// cumulative snapshots.
type answer struct {
	title  string
	text   string
	charts []frames.ChartFragment
}

func buildAnswer(prompt string) answer {
	rng := rand.New(rand.NewSource(int64(promptSeed(prompt))))
	switch classify(prompt) {
	case intentCompanyTrend:
		return trendAnswer(rng)
	case intentPrediction:
		return predictionAnswer(rng)
	default:
		return summaryAnswer(rng)
	}
}

func promptSeed(prompt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return h.Sum64()
}

func summaryAnswer(rng *rand.Rand) answer {
	data := make([]frames.DataPoint, 0, len(trackedSymbols))
	remaining := 100.0
	for i, sym := range trackedSymbols {
		share := remaining / float64(len(trackedSymbols)-i)
		share += (rng.Float64() - 0.5) * share * 0.4
		if i == len(trackedSymbols)-1 {
			share = remaining
		}
		remaining -= share
		data = append(data, frames.DataPoint{"company": sym, "share": round1(share)})
	}
	return answer{
		title: "Market Summary",
		text: "Here is the current market summary. The S&P 500 continues to dominate " +
			"the tracked basket by weight, with large-cap tech splitting most of the " +
			"remainder. The pie chart breaks down the relative share of each symbol.",
		charts: []frames.ChartFragment{{
			ID:       strptr("market-share"),
			Kind:     strptr(string(frames.KindPie)),
			Title:    strptr("Market Share Distribution"),
			Data:     data,
			DataKeys: []string{"share"},
			Colors:   palette,
		}},
	}
}

func trendAnswer(rng *rand.Rand) answer {
	symbols := trackedSymbols[1:4]
	base := map[string]float64{}
	for _, s := range symbols {
		base[s] = 80 + rng.Float64()*120
	}
	data := make([]frames.DataPoint, 0, 12)
	for week := 0; week < 12; week++ {
		point := frames.DataPoint{"date": fmt.Sprintf("2026-W%02d", week+20)}
		for _, s := range symbols {
			base[s] *= 1 + (rng.Float64()-0.48)*0.06
			point[s] = round1(base[s])
		}
		data = append(data, point)
	}
	return answer{
		title: "Performance Comparison",
		text: "Comparing the recent performance of AAPL, MSFT and GOOGL over the last " +
			"twelve weeks. All three track the broader index, with week-to-week " +
			"divergence staying inside a few percent.",
		charts: []frames.ChartFragment{{
			ID:        strptr("multi-company-trend"),
			Kind:      strptr(string(frames.KindLine)),
			Title:     strptr("Performance Over Time"),
			Data:      data,
			XKey:      strptr("date"),
			DataKeys:  symbols,
			Colors:    palette[:len(symbols)],
			TimeRange: strptr("3mo"),
		}},
	}
}

func predictionAnswer(rng *rand.Rand) answer {
	price := 150 + rng.Float64()*100
	data := make([]frames.DataPoint, 0, 30)
	for day := 0; day < 30; day++ {
		price *= 1 + (rng.Float64()-0.47)*0.02
		data = append(data, frames.DataPoint{
			"date":      fmt.Sprintf("2026-09-%02d", day+1),
			"predicted": round1(price),
		})
	}
	return answer{
		title: "Price Forecast",
		text: "This is a naive thirty-day forward projection extrapolated from recent " +
			"momentum. Treat it as an illustration of the charting pipeline, not as " +
			"financial advice.",
		charts: []frames.ChartFragment{{
			ID:        strptr("price-prediction"),
			Kind:      strptr(string(frames.KindLine)),
			Title:     strptr("30-Day Price Forecast"),
			Data:      data,
			XKey:      strptr("date"),
			YKey:      strptr("predicted"),
			DataKeys:  []string{"predicted"},
			Colors:    palette[:1],
			TimeRange: strptr("1mo"),
		}},
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// Script turns the prompt's full answer into the cumulative snapshot frames
// a real incremental generator would produce: text grows word by word, the
// chart first appears as a labeled skeleton and gains its data and styling
// in later frames.
func Script(prompt string) []*frames.Frame {
	ans := buildAnswer(prompt)
	words := strings.Fields(ans.text)

	var out []*frames.Frame
	const wordsPerFrame = 6
	for n := wordsPerFrame; n < len(words); n += wordsPerFrame {
		out = append(out, &frames.Frame{
			Content: strings.Join(words[:n], " "),
			Title:   strptr(ans.title),
			Charts:  chartsAt(ans.charts, len(out)),
		})
	}
	out = append(out, &frames.Frame{
		Content: ans.text,
		Title:   strptr(ans.title),
		Charts:  ans.charts,
	})
	return out
}

// chartsAt reveals the charts progressively: nothing, then a skeleton with
// identity and kind only, then the full fragment.
func chartsAt(full []frames.ChartFragment, step int) []frames.ChartFragment {
	switch {
	case step < 1:
		return nil
	case step < 3:
		skeletons := make([]frames.ChartFragment, 0, len(full))
		for _, c := range full {
			skeletons = append(skeletons, frames.ChartFragment{
				ID:    c.ID,
				Kind:  c.Kind,
				Title: c.Title,
			})
		}
		return skeletons
	default:
		return full
	}
}
