// Package hue drives ambient lighting through a Philips Hue bridge.
//
// Colors arrive as CSS-style strings (#RRGGBB, rgb(), hsl()), are
// gamma-decoded to linear light and projected into CIE xy chromaticity,
// the form the bridge natively accepts. Applies address the configured
// group first and fall back to per-light calls when the group resource
// is missing, so a half-commissioned bridge still lights up.
//
// When disabled in config the adapter stays constructible and answers
// applies with a soft not-ok result rather than errors.
package hue
