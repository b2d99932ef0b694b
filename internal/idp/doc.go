// Package idp reads and writes the cohort table of imaging-derived
// phenotypes (IDPs) produced by the pipeline, one row per subject session,
// and summarizes each measure across the cohort.
package idp
