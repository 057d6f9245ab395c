package envelope

// SealWithIV exposes the deterministic sealing path to the external tests.
var SealWithIV = sealWithIV
