// Package render performs one render call against a guest.
//
// Render builds the options record through a bridge.Bridge, issues exactly one
// foreign call, and maps the returned status to an *errors.Error:
//
//	0  success
//	1  errors.KindParse
//	2  errors.KindRender
//	3  errors.KindFontLoad
//	4  errors.KindOutOfMemory
//	*  errors.KindUnknownStatus, with the raw code in Status
//
// On success the output bytes are copied into a Go slice and the guest's
// buffer is handed back through Guest.FreeOutput, once. Failed calls never
// read the out-parameters and never release anything.
//
// Scratch buffers allocated for the request are freed before Render returns,
// on every path.
package render
