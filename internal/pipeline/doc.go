// Package pipeline implements the stream model the build tasks run on.
//
// A stream is a receive-only channel of *File records. Stages consume one
// stream and produce another; they always drain their input so upstream
// producers never block forever, and they report per-file failures to a
// Diagnostics sink instead of stopping the stream. VariantBuilder fans a
// single source stream out into the development and minified outputs.
package pipeline
