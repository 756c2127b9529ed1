package routes

import "errors"

var (
	// ErrRouteNotFound is returned by the repository when no route has the ID
	ErrRouteNotFound = errors.New("route not found")

	// ErrNoTrackPoints is returned when a GPX file holds neither track nor route points
	ErrNoTrackPoints = errors.New("gpx file contains no points")
)
