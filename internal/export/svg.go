// Package export renders runs and dial snapshots as standalone SVG.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/servoctl/internal/telemetry"
	"github.com/san-kum/servoctl/internal/viz"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// CanvasToSVG draws every lit dot of canvas as a circle, scale pixels
// apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	dw, dh := canvas.Dots()
	width, height := int(float64(dw)*scale), int(float64(dh)*scale)

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	sb.WriteString("<g fill=\"#00ff00\">\n")

	r := scale * 0.4
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Point is one vertex of a trace.
type Point struct{ X, Y float64 }

// Trace is a named polyline.
type Trace struct {
	Color  string
	Points []Point
}

// TracesToSVG plots the traces on shared axes scaled to fit width x height
// with a 10% margin.
func TracesToSVG(traces []Trace, width, height int) string {
	var minX, maxX, minY, maxY float64
	first := true
	for _, tr := range traces {
		for _, p := range tr.Points {
			if first {
				minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
				first = false
				continue
			}
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	if first {
		return ""
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	for _, tr := range traces {
		if len(tr.Points) < 2 {
			continue
		}
		fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"", tr.Color)
		for i, p := range tr.Points {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>")
	return sb.String()
}

// RunToSVG plots set-point (yellow) and rotor (green) against time.
func RunToSVG(records []telemetry.Record, width, height int) string {
	sp := Trace{Color: "#ffcc00", Points: make([]Point, len(records))}
	pos := Trace{Color: "#00ff88", Points: make([]Point, len(records))}
	for i, r := range records {
		sp.Points[i] = Point{r.Time, r.SetPoint}
		pos.Points[i] = Point{r.Time, r.Position}
	}
	return TracesToSVG([]Trace{sp, pos}, width, height)
}

// DialToSVG snapshots the dial at one record.
func DialToSVG(r telemetry.Record, resolution, scale float64) string {
	c := viz.NewCanvas(24, 12)
	c.DrawDial(r.Position, r.SetPoint, resolution)
	return CanvasToSVG(c, scale)
}
