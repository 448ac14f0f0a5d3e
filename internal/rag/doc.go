// Package rag turns a user query into token-bounded, citable evidence.
//
// The pipeline has three pure stages around one data-dependent one:
//
//	Builder (Post Store lookup)
//	     |
//	     +-- explicit-identifier mode (caller order preserved)
//	     +-- embedding mode (nearest neighbors, descending similarity)
//	     |
//	     v
//	LimitByBudget (whole-item drops, chars/4 token heuristic)
//	     |
//	     v
//	Compose (grounding instruction with [n] citation blocks)
//	     |
//	     v
//	ParseCitations (post-stream, maps [n] markers back to evidence)
//
// Evidence lives only for the duration of one request. Citation indices
// are assigned after budgeting, so they are always contiguous and every
// index the model can legitimately cite maps to a rendered block.
package rag
