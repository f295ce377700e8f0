package ledger

// Well-known endpoints and program addresses for the delegation
// infrastructure. The rollup router picks the closest region automatically;
// the regional endpoints exist for explicit pinning.
const (
	BaseRPC         = "https://api.devnet.solana.com"
	RollupRPCRouter = "https://devnet-router.magicblock.app"
	RollupRPCAsia   = "https://devnet-as.magicblock.app"
	RollupRPCEU     = "https://devnet-eu.magicblock.app"
	RollupRPCUS     = "https://devnet-us.magicblock.app"
)

// DelegationProgramID owns every account currently delegated to the rollup.
// An account read showing this owner is the delegation signal.
var DelegationProgramID = MustPubkey("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")

// Rollup validator identities, used as the delegation target.
var (
	RollupValidatorAsia = MustPubkey("MAS1Dt9qreoRMQ14YQuhg8UTZMMzDdKhmkZMECCzk57")
	RollupValidatorEU   = MustPubkey("MEUGGrYPxKk17hCr7wpT6s8dtNokZj5U2L57vjYMS8e")
	RollupValidatorUS   = MustPubkey("MUS3hc9TCw4cGC12vHNoYcCGzJG1txjgQLZWVoeNHNd")
)

// DefaultRollupValidator favors the Asia region for latency.
var DefaultRollupValidator = RollupValidatorAsia

// Endpoints pairs the two execution environments a client instance talks to.
type Endpoints struct {
	Base   string `yaml:"base"`
	Rollup string `yaml:"rollup"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{Base: BaseRPC, Rollup: RollupRPCRouter}
}
