package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/proforce-air/pidlink/internal/loop"
)

const (
	svgWidth  = 800.0
	svgHeight = 400.0
	svgMargin = 40.0
)

// WriteSVG renders measurement, control, and error traces against time
// into a single chart, with a dashed setpoint line.
func WriteSVG(path string, samples []loop.Sample, setpoint float64) error {
	return os.WriteFile(path, []byte(renderSVG(samples, setpoint)), 0644)
}

func renderSVG(samples []loop.Sample, setpoint float64) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, svgWidth, svgHeight, svgWidth, svgHeight))

	if len(samples) > 1 {
		tMax := samples[len(samples)-1].T
		if tMax <= 0 {
			tMax = 1
		}
		vMin, vMax := valueRange(samples, setpoint)

		sy := func(v float64) float64 {
			return svgHeight - svgMargin - (v-vMin)/(vMax-vMin)*(svgHeight-2*svgMargin)
		}
		sx := func(t float64) float64 {
			return svgMargin + t/tMax*(svgWidth-2*svgMargin)
		}

		sb.WriteString(fmt.Sprintf(
			`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#888888" stroke-dasharray="6,4"/>`+"\n",
			sx(0), sy(setpoint), sx(tMax), sy(setpoint)))

		traces := []struct {
			color string
			pick  func(loop.Sample) float64
		}{
			{"#00ff00", func(s loop.Sample) float64 { return s.Measurement }},
			{"#00aaff", func(s loop.Sample) float64 { return s.Control }},
			{"#ff5555", func(s loop.Sample) float64 { return s.Err }},
		}
		for _, tr := range traces {
			sb.WriteString(fmt.Sprintf(`<polyline fill="none" stroke="%s" points="`, tr.color))
			for _, s := range samples {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f ", sx(s.T), sy(tr.pick(s))))
			}
			sb.WriteString("\"/>\n")
		}
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

func valueRange(samples []loop.Sample, setpoint float64) (float64, float64) {
	vMin, vMax := setpoint, setpoint
	for _, s := range samples {
		for _, v := range []float64{s.Measurement, s.Control, s.Err} {
			vMin = math.Min(vMin, v)
			vMax = math.Max(vMax, v)
		}
	}
	if vMax == vMin {
		vMax = vMin + 1
	}
	return vMin, vMax
}
