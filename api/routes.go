package api

// Route constants for the API endpoints.

const (
	// Health endpoint
	PingEndpoint = "/ping" // GET: health check

	// Election endpoints
	ConfigEndpoint = "/election/config" // GET: pinned config, POST: pin config
	ResultEndpoint = "/election/result" // GET: plaintext result, POST: publish result

	// Guardian endpoints
	GuardianIndexParam      = "guardianIndex"
	GuardiansEndpoint       = "/guardians"                                          // GET: all guardian records
	GuardianEndpoint        = GuardiansEndpoint + "/{" + GuardianIndexParam + "}"   // GET: one guardian record
	GuardianKeyEndpoint     = GuardianEndpoint + "/key"                             // POST: publish public key
	GuardianSharesEndpoint  = GuardianEndpoint + "/shares"                          // POST: publish encrypted shares
	GuardianStatusEndpoint  = GuardianEndpoint + "/status"                          // POST: publish ceremony status
	GuardianExcludeEndpoint = GuardianEndpoint + "/excluded"                        // POST: set excluded flag

	// Tally and decryption endpoints
	TallyEndpoint             = "/tally"                                 // GET: encrypted tally, POST: publish tally
	DecryptionShareEndpoint   = GuardianEndpoint + "/decryption/share"   // POST: publish decryption shares
	DecryptionCommitEndpoint  = GuardianEndpoint + "/decryption/commits" // POST: publish proof commits
	DecryptionRespondEndpoint = GuardianEndpoint + "/decryption/responses"
)
