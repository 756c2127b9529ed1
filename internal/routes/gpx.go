package routes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taiso/routes-service/pkg/geo"
	"github.com/tkrajina/gpxgo/gpx"
)

// ParseGPX reads the points of every track segment in order. Files without
// tracks fall back to their routes. Points are numbered 0..n-1 in file order.
// Missing elevations are read as 0.
func ParseGPX(data []byte) (*ParsedGPX, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	parsed := &ParsedGPX{
		Name:        strings.TrimSpace(doc.Name),
		Description: strings.TrimSpace(doc.Description),
	}

	appendPoint := func(p *gpx.GPXPoint) {
		seq := len(parsed.Points)
		parsed.Points = append(parsed.Points, geo.RoutePoint{
			ID:        strconv.Itoa(seq),
			Sequence:  seq,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Elevation: p.Elevation.Value(),
		})
	}

	for _, track := range doc.Tracks {
		if parsed.Name == "" {
			parsed.Name = strings.TrimSpace(track.Name)
		}
		for _, segment := range track.Segments {
			for i := range segment.Points {
				appendPoint(&segment.Points[i])
			}
		}
	}

	if len(parsed.Points) == 0 {
		for _, route := range doc.Routes {
			if parsed.Name == "" {
				parsed.Name = strings.TrimSpace(route.Name)
			}
			for i := range route.Points {
				appendPoint(&route.Points[i])
			}
		}
	}

	if len(parsed.Points) == 0 {
		return nil, ErrNoTrackPoints
	}

	return parsed, nil
}
