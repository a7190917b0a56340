package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

// cacheKeyVersion changes whenever the object format or the way keys are
// computed changes.
const cacheKeyVersion = "lto2-object-v1"

// CacheKey fingerprints everything that determines a job's object: the
// configuration, and for each module its path, content hash, resolutions,
// computed linkages and the content hashes of the modules it imports.
func CacheKey(conf Config, job Job) string {
	h := sha256.New()
	field(h, cacheKeyVersion)
	field(h, strconv.Itoa(conf.OptLevel))
	field(h, conf.CGOptLevel.String())
	field(h, conf.CPU)
	field(h, strings.Join(conf.MAttrs, ","))
	field(h, conf.RelocModel)
	field(h, conf.CodeModel)
	field(h, conf.FileType.String())
	field(h, conf.OverrideTriple)
	field(h, conf.DefaultTriple)
	field(h, conf.OptPipeline)
	field(h, conf.AAPipeline)

	field(h, strconv.Itoa(len(job.Summaries)))
	for _, sum := range job.Summaries {
		field(h, sum.Module)
		field(h, sum.Hash)
		field(h, sum.Triple)
		field(h, strconv.Itoa(len(sum.Symbols)))
		for _, s := range sum.Symbols {
			field(h, s.Name)
			field(h, s.Resolution)
			field(h, string(s.Linkage))
			field(h, strconv.FormatBool(s.DSOLocal))
		}
		field(h, strconv.Itoa(len(sum.importHashes)))
		for _, ih := range sum.importHashes {
			field(h, ih)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// field writes a length-prefixed value so adjacent fields cannot collide.
func field(h hash.Hash, v string) {
	fmt.Fprintf(h, "%d:%s;", len(v), v)
}
