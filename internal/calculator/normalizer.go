package calculator

import "CVDMonitor/internal/model"

// ZScores computes the CVD z-score of every row, grouping by symbol.
// The output has one point per input row, in input order.
func ZScores(ds *model.Dataset) ([]model.ZScorePoint, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ZScoresOf(ds.Len(), ds.Partition()), nil
}

// ZScoresOf z-scores already partitioned series of a validated dataset with n
// rows. Points land at their Series.Index positions.
func ZScoresOf(n int, series []model.Series) []model.ZScorePoint {
	out := make([]model.ZScorePoint, n)
	for _, s := range series {
		z := ZScore(s.CVDs())
		for k, p := range s.Points {
			out[s.Index[k]] = model.ZScorePoint{
				Symbol:    p.Symbol,
				Timestamp: p.Timestamp,
				Price:     p.Price,
				CVD:       p.CVD,
				CVDZScore: z[k],
			}
		}
	}
	return out
}

// SeriesZScores returns the z-scored points of a single series in time order.
func SeriesZScores(s model.Series) []model.ZScorePoint {
	z := ZScore(s.CVDs())
	out := make([]model.ZScorePoint, len(s.Points))
	for k, p := range s.Points {
		out[k] = model.ZScorePoint{
			Symbol:    p.Symbol,
			Timestamp: p.Timestamp,
			Price:     p.Price,
			CVD:       p.CVD,
			CVDZScore: z[k],
		}
	}
	return out
}
