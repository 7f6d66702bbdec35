package rest

// request and response types are defined below
// amounts travel as base 10 wei strings so no precision is lost in json numbers

type AppendTransactionRequest struct {
	SubmissionID string `json:"submissionId"`
	Receiver     string `json:"receiver"`
	Amount       string `json:"amount"`
	Message      string `json:"message"`
	Keyword      string `json:"keyword"`
	// PublicKey and Signature are hex encoded.
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type AppendTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsRequest struct{}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Count        uint64         `json:"count"`
}

type GetCountRequest struct{}

type GetCountResponse struct {
	Count uint64 `json:"count"`
}

type GetTransactionRequest struct {
	Index uint64 `json:"-"`
}

type GetTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type Transaction struct {
	Index        uint64 `json:"index"`
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	Amount       string `json:"amount"`
	Message      string `json:"message"`
	Keyword      string `json:"keyword"`
	Timestamp    int64  `json:"timestamp"`
	SubmissionID string `json:"submissionId,omitempty"`
}
