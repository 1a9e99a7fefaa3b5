package domain

import "errors"

// Every failure of a run wraps one of these so the category survives propagation.
var (
	// ErrConfig is a missing or malformed setting.
	ErrConfig = errors.New("configuration error")
	// ErrResolution is a named organization, project or column that could not be found.
	ErrResolution = errors.New("resolution error")
	// ErrSession is a browser login that did not complete in time.
	ErrSession = errors.New("session error")
	// ErrOutputPath is a PDF directory that is absent and cannot be created.
	ErrOutputPath = errors.New("output path error")
	// ErrDataIntegrity is a tracker item the board cannot place in a column.
	ErrDataIntegrity = errors.New("data integrity error")
	// ErrTemplate is a cover-page template that lacks a required part or style.
	ErrTemplate = errors.New("template error")
)
