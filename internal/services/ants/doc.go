// Package ants wraps the ANTs command line tools used by the pipeline:
// antsRegistrationSyNQuick.sh for rigid+affine (optionally SyN) registration
// and antsApplyTransforms for resampling images through the resulting
// transforms.
//
// Output file names follow the ANTs prefix conventions, so callers derive
// warped images and transforms from the prefix with the helpers in this
// package instead of building strings by hand.
package ants
