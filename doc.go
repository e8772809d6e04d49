// Package calyx implements ITU-R BS.1770 loudness measurement and the
// iTunNORM normalization comment used by iTunes-era MP3/M4A libraries.
//
// A track is fed sample-by-sample through a PreFilter, which K-weights the
// signal and accumulates sliding, overlapping 400ms blocks that pass an
// absolute silence gate into a Stats histogram. Integrated loudness and
// loudness range are read back from that histogram with a relative gate
// below the ungated mean. Track and Aggregator bind this to
// the grouping rules iTunes expects: per-file normalization plus an
// optional shared value across an album.
package calyx
