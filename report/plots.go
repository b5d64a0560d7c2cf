package report

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/yimp/practicalml/pkg/errors"
)

// writePlots renders the feature importance bar chart and the training
// loss curve into dir, returning the paths written.
func writePlots(dir string, r *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	var written []string

	if len(r.FeatureScores) > 0 {
		path := filepath.Join(dir, "feature_importance.png")
		if err := featureImportancePlot(path, r.FeatureScores); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	if len(r.LossHistory) > 0 {
		path := filepath.Join(dir, "training_loss.png")
		if err := lossCurvePlot(path, r.LossHistory); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	return written, nil
}

// featureImportancePlot draws a horizontal view of the top features as a
// bar chart, most important first.
func featureImportancePlot(path string, scores []FeatureScore) error {
	n := len(scores)
	if n > 15 {
		n = 15
	}

	p := plot.New()
	p.Title.Text = "Feature Importance (gain)"
	p.Y.Label.Text = "normalized gain"

	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = scores[i].Score
		labels[i] = scores[i].Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return errors.WithStack(err)
	}
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = -0.9
	p.X.Tick.Label.YAlign = -0.4

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// lossCurvePlot draws the per-iteration training logloss.
func lossCurvePlot(path string, history []float64) error {
	p := plot.New()
	p.Title.Text = "Training Loss"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "multiclass logloss"

	pts := make(plotter.XYs, len(history))
	for i, loss := range history {
		pts[i].X = float64(i + 1)
		pts[i].Y = loss
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.WithStack(err)
	}
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
