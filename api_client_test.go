package gpv2

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kaifufi/gpv2-order-sdk-go/chain"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func testOrder(kind chain.OrderKind) *chain.Order {
	return &chain.Order{
		SellToken:        common.HexToAddress("0xc778417E063141139Fce010982780140Aa0cD5Ab"),
		BuyToken:         common.HexToAddress("0x4DBCdF9B62e891a7cec5A2568C3F4FAF9E8Abe2b"),
		SellAmount:       big.NewInt(1_000_000),
		BuyAmount:        big.NewInt(2_000_000),
		ValidTo:          1_700_000_000,
		FeeAmount:        big.NewInt(5_000),
		Kind:             kind,
		SellTokenBalance: chain.TokenBalanceERC20,
		BuyTokenBalance:  chain.TokenBalanceERC20,
	}
}

// recordedRequest is one request seen by the fake orderbook
type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// newFakeOrderbook serves handler and records every request it receives
func newFakeOrderbook(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded := recordedRequest{Method: r.Method, Path: r.URL.Path}
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(body) > 0 {
			require.NoError(t, json.Unmarshal(body, &recorded.Body))
		}
		requests = append(requests, recorded)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestFetchQuoteSellOrder(t *testing.T) {
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"quote":{"sellAmount":"995000","buyAmount":"1990000","feeAmount":"5000"},"id":42}`)
	})

	order := testOrder(chain.OrderKindSell)
	// Exceeds 64 bits so a float or int64 sum would lose precision
	order.SellAmount, _ = new(big.Int).SetString("1267650600228229401496703205376", 10)
	order.FeeAmount = big.NewInt(1)

	req, err := NewQuoteRequest(order, testAccount)
	require.NoError(t, err)

	quote, err := NewAPIClient(server.URL, nil).FetchQuote(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	sent := (*requests)[0]
	assert.Equal(t, http.MethodPost, sent.Method)
	assert.Equal(t, "/api/v1/quote", sent.Path)
	assert.Equal(t, "1267650600228229401496703205377", sent.Body["sellAmountBeforeFee"])
	assert.NotContains(t, sent.Body, "buyAmountAfterFee")
	assert.NotContains(t, sent.Body, "sellAmount")
	assert.Equal(t, "sell", sent.Body["kind"])

	assert.Equal(t, "995000", quote.SellAmount.String())
	assert.Equal(t, "1990000", quote.BuyAmount.String())
	assert.Equal(t, "5000", quote.FeeAmount.String())
	assert.Equal(t, QuoteID("42"), quote.ID)
}

func TestFetchQuoteBuyOrder(t *testing.T) {
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"quote":{"sellAmount":"1","buyAmount":"2","feeAmount":"3"},"id":7}`)
	})

	order := testOrder(chain.OrderKindBuy)

	req, err := NewQuoteRequest(order, testAccount)
	require.NoError(t, err)

	_, err = NewAPIClient(server.URL, nil).FetchQuote(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	sent := (*requests)[0].Body
	assert.Equal(t, "2000000", sent["buyAmountAfterFee"])
	assert.NotContains(t, sent, "sellAmountBeforeFee")
	assert.Equal(t, "buy", sent["kind"])
}

func TestFetchQuoteUnsupportedKind(t *testing.T) {
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := NewQuoteRequest(testOrder("limit"), testAccount)
	assert.ErrorIs(t, err, chain.ErrUnsupportedKind)

	_, err = NewAPIClient(server.URL, nil).FetchQuote(context.Background(), &QuoteRequest{Kind: "limit"})
	assert.ErrorIs(t, err, chain.ErrUnsupportedKind)

	assert.Empty(t, *requests)
}

func TestFetchQuoteRejectsAmbiguousRequests(t *testing.T) {
	client := NewAPIClient("http://127.0.0.1:0", nil)

	_, err := client.FetchQuote(context.Background(), &QuoteRequest{
		Kind:                chain.OrderKindSell,
		SellAmountBeforeFee: "1",
		BuyAmountAfterFee:   "1",
	})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = client.FetchQuote(context.Background(), &QuoteRequest{Kind: chain.OrderKindBuy})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestSubmitOrder(t *testing.T) {
	const uid = "0x0102"
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `"`+uid+`"`)
	})

	order := testOrder(chain.OrderKindSell)
	order.PartiallyFillable = true
	quoteID := QuoteID("42")
	signature := &chain.Signature{Scheme: chain.SigningSchemeEthSign, Data: "0xsig"}

	got, err := NewAPIClient(server.URL, nil).SubmitOrder(context.Background(), NewOrderCreation(order, signature, testAccount, &quoteID))
	require.NoError(t, err)
	assert.Equal(t, OrderUID(uid), got)

	require.Len(t, *requests, 1)
	sent := (*requests)[0]
	assert.Equal(t, "/api/v1/orders", sent.Path)
	assert.Equal(t, "ethsign", sent.Body["signingScheme"])
	assert.Equal(t, "0xsig", sent.Body["signature"])
	assert.Equal(t, float64(42), sent.Body["quoteId"])
	assert.Equal(t, float64(1_700_000_000), sent.Body["validTo"])
	assert.Equal(t, true, sent.Body["partiallyFillable"])
	assert.Equal(t, "1000000", sent.Body["sellAmount"])
	assert.Equal(t, "5000", sent.Body["feeAmount"])
	assert.Equal(t, "0x0000000000000000000000000000000000000000", sent.Body["receiver"])
}

func TestSubmitOrderOmitsMissingQuoteID(t *testing.T) {
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `"0x01"`)
	})

	signature := &chain.Signature{Scheme: chain.SigningSchemeEIP712, Data: "0xsig"}
	_, err := NewAPIClient(server.URL, nil).SubmitOrder(context.Background(), NewOrderCreation(testOrder(chain.OrderKindBuy), signature, testAccount, nil))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.NotContains(t, (*requests)[0].Body, "quoteId")
	assert.Equal(t, "eip712", (*requests)[0].Body["signingScheme"])
}

func TestOrderbookErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
		wantType string
	}{
		{
			name:     "description is surfaced verbatim",
			status:   http.StatusBadRequest,
			body:     `{"errorType":"InsufficientFee","description":"X"}`,
			wantText: "X",
			wantType: "InsufficientFee",
		},
		{
			name:     "error type without description",
			status:   http.StatusBadRequest,
			body:     `{"errorType":"DuplicateOrder"}`,
			wantText: "DuplicateOrder",
			wantType: "DuplicateOrder",
		},
		{
			name:     "non JSON body",
			status:   http.StatusInternalServerError,
			body:     `oops`,
			wantText: "500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			signature := &chain.Signature{Scheme: chain.SigningSchemeEIP712, Data: "0xsig"}
			uid, err := NewAPIClient(server.URL, nil).SubmitOrder(context.Background(), NewOrderCreation(testOrder(chain.OrderKindSell), signature, testAccount, nil))
			require.Error(t, err)
			assert.Empty(t, uid)
			assert.Equal(t, tt.wantText, err.Error())
			assert.True(t, errors.Is(err, ErrOrderbook))

			apiErr, ok := IsOrderbookError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantType, apiErr.ErrorType)
		})
	}
}

func TestGetOrder(t *testing.T) {
	const uid = "0xabcd"
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"uid": "0xabcd",
			"owner": "0x00000000000000000000000000000000000000aa",
			"sellToken": "0xc778417e063141139fce010982780140aa0cd5ab",
			"buyToken": "0x4dbcdf9b62e891a7cec5a2568c3f4faf9e8abe2b",
			"receiver": "0x0000000000000000000000000000000000000000",
			"sellAmount": "1000000",
			"buyAmount": "2000000",
			"validTo": 1700000000,
			"appData": "0x0000000000000000000000000000000000000000000000000000000000000000",
			"feeAmount": "5000",
			"kind": "sell",
			"partiallyFillable": false,
			"sellTokenBalance": "erc20",
			"buyTokenBalance": "erc20",
			"signingScheme": "presign",
			"signature": "0x00000000000000000000000000000000000000aa",
			"status": "presignaturePending",
			"creationDate": "2021-06-01T12:00:00Z",
			"executedSellAmount": "0",
			"executedBuyAmount": "0",
			"invalidated": false
		}`)
	})

	status, err := NewAPIClient(server.URL, nil).GetOrder(context.Background(), uid)
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodGet, (*requests)[0].Method)
	assert.Equal(t, "/api/v1/orders/0xabcd", (*requests)[0].Path)

	assert.Equal(t, OrderUID(uid), status.UID)
	assert.Equal(t, testAccount, status.Owner)
	assert.Equal(t, "presignaturePending", status.Status)
	assert.Equal(t, "presign", status.SigningScheme)

	order, err := status.Order()
	require.NoError(t, err)
	assert.Equal(t, testOrder(chain.OrderKindSell).Parameters(), order.Parameters())
}

func TestGetOrderRequiresUID(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	_, err := NewAPIClient(server.URL, nil).GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestAPIClientRateLimit(t *testing.T) {
	server, requests := newFakeOrderbook(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `"0x01"`)
	})

	client := NewAPIClient(server.URL, nil).WithRateLimit(rate.Limit(1), 1)
	signature := &chain.Signature{Scheme: chain.SigningSchemeEIP712, Data: "0xsig"}
	creation := NewOrderCreation(testOrder(chain.OrderKindSell), signature, testAccount, nil)

	_, err := client.SubmitOrder(context.Background(), creation)
	require.NoError(t, err)

	// The burst is spent, so a cancelled context cannot wait for a token
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.SubmitOrder(ctx, creation)
	assert.ErrorContains(t, err, "rate limiter")

	assert.Len(t, *requests, 1)
}
