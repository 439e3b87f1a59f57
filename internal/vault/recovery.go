package vault

import (
	"crypto/rand"
	"math/big"
)

// recoveryWordCount matches common BIP39-style recovery phrase lengths.
const recoveryWordCount = 12

// wordlist is a small built-in word list used to render the recovery key as
// a phrase rather than raw bytes. It is not a cryptographic primitive —
// entropy comes from the random index selection, not the word contents.
var wordlist = []string{
	"anchor", "badge", "canyon", "dolphin", "ember", "falcon", "glacier", "harbor",
	"ivory", "jasper", "kettle", "lantern", "meadow", "nebula", "oasis", "pepper",
	"quartz", "raven", "summit", "timber", "umbrella", "velvet", "willow", "xenon",
	"yonder", "zephyr", "amber", "birch", "cobalt", "driftwood", "echo", "fable",
	"granite", "heron", "indigo", "juniper", "keystone", "lagoon", "maple", "nimbus",
	"onyx", "prairie", "quiver", "ridge", "sable", "thistle", "unity", "violet",
	"walnut", "xylophone", "yarrow", "zenith", "alder", "breeze", "cedar", "dune",
	"ewer", "frost", "grove", "hazel", "isle", "jade", "knoll", "loam",
}

func generateRecoveryKey() []string {
	words := make([]string, recoveryWordCount)
	for i := range words {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(wordlist))))
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		words[i] = wordlist[n.Int64()]
	}
	return words
}
