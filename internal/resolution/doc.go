// Package resolution parses command-line symbol resolutions and reconciles
// them against the symbols each input module enumerates.
//
// A resolution is written as "file,symbol,flags" where flags is a possibly
// empty sequence of:
//
//	p  prevailing: the linker chose this definition of the symbol
//	l  local: the definition is unpreemptable at runtime and is known to be
//	   in this linkage unit
//	x  externally visible: the definition is visible outside the LTO unit
//
// A (file, symbol) pair may be given several times. A module can enumerate
// the same symbol more than once (a symbol defined in module-level assembly
// that also has a declaration), so resolutions for a pair are consumed in
// the order they were given.
package resolution
