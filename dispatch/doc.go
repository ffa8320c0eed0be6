// Package dispatch implements the translation dispatch and batching core of
// a neural machine translation serving library: sentence-level request
// tracking, length-bucketed batch assembly, an aggregate scheduler that
// multiplexes several models across a fixed worker pool, a sharded sentence
// cache, and the alignment remapping used to chain two translations through
// a pivot language.
//
// The neural inference kernel, sub-word tokenizer, sentence splitter and
// model loader are external collaborators; dispatch only defines the
// interfaces it needs from them (TextProcessor, Backend, ModelHandle).
package dispatch
