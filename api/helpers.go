package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voteguard/voteguard-node/log"
)

// maxArtifactBody bounds artifact upload sizes. The largest legitimate
// artifact is a tally-wide decryption share set, well under this.
const maxArtifactBody = 32 << 20

// httpWriteJSON writes data as a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jdata); err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
}

// httpWriteBinary streams raw artifact bytes.
func httpWriteBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Warnw("failed to write binary response", "error", err)
	}
}

// httpWriteOK writes an empty OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
}

// jsonBody decodes a bounded JSON request body into out.
func jsonBody(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxArtifactBody)).Decode(out)
}

// readArtifactBody reads a bounded opaque artifact body.
func readArtifactBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxArtifactBody))
}

// guardianIndex parses the 1-based guardian index URL parameter.
func guardianIndex(r *http.Request) (uint32, bool) {
	raw := chi.URLParam(r, GuardianIndexParam)
	idx, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || idx == 0 {
		return 0, false
	}
	return uint32(idx), true
}
