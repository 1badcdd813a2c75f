// Package textproc implements sentence and word parsing over plain text
// content, the indexing primitive that gives WRITE-COMMIT its
// sentence/word addressing scheme.
//
// The algorithms mirror the original service's sentence_parser.c
// exactly: sentences are cut at '.', '!', or '?' (the terminator stays
// attached to the sentence it ends), each cut sentence is trimmed of
// leading/trailing whitespace, and a trailing run with no terminator
// becomes one final sentence. An overlong run is force-cut once it
// reaches MaxSentenceLength-1 bytes so no single sentence grows unbounded. Words are
// whitespace-delimited within a sentence, with empty runs ignored.
package textproc
