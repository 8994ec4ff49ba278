package exchange

// SignRequest describes the call being authenticated. Params are the
// parameters the exchange expects to be covered by the signature.
type SignRequest struct {
	Method string
	Host   string
	Path   string
	Params Params
}

// Signed holds what the transport must add to execute the call: the encoded
// query string, the request body and extra headers. Empty fields are unused.
type Signed struct {
	Query  string
	Body   string
	Header map[string]string
}

type Signer interface {
	Sign(req SignRequest) (Signed, error)
}
