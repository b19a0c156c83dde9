package tda

import (
	"context"
	"net/http"

	"github.com/danielmulvad/tda-backend/transport"
	"github.com/pkg/errors"
)

// Account mirrors the subset of the brokerage account envelope the app
// renders. The upstream returns far more; unknown fields are ignored.
type Account struct {
	SecuritiesAccount SecuritiesAccount `json:"securitiesAccount"`
}

type SecuritiesAccount struct {
	AccountID       string   `json:"accountId"`
	Type            string   `json:"type"`
	RoundTrips      int64    `json:"roundTrips"`
	IsDayTrader     bool     `json:"isDayTrader"`
	CurrentBalances Balances `json:"currentBalances"`
}

type Balances struct {
	CashBalance              float64 `json:"cashBalance"`
	LiquidationValue         float64 `json:"liquidationValue"`
	LongMarketValue          float64 `json:"longMarketValue"`
	CashAvailableForTrading  float64 `json:"cashAvailableForTrading"`
	CashAvailableForWithdraw float64 `json:"cashAvailableForWithdrawal"`
}

// Order is the trimmed order envelope.
type Order struct {
	OrderID        int64   `json:"orderId"`
	Status         string  `json:"status"`
	OrderType      string  `json:"orderType"`
	Quantity       float64 `json:"quantity"`
	FilledQuantity float64 `json:"filledQuantity"`
	EnteredTime    string  `json:"enteredTime"`
}

// GetAccounts reads the accounts linked to the upstream access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var accounts []Account
	if err := c.getJSON(ctx, c.apiBaseURL+"/accounts", accessToken, &accounts); err != nil {
		return nil, errors.Wrap(err, "[Client.GetAccounts]")
	}
	return accounts, nil
}

// GetOrders reads the orders of one account.
func (c *Client) GetOrders(ctx context.Context, accountID, accessToken string) ([]Order, error) {
	var orders []Order
	url := c.apiBaseURL + "/accounts/" + accountID + "/orders"
	if err := c.getJSON(ctx, url, accessToken, &orders); err != nil {
		return nil, errors.Wrap(err, "[Client.GetOrders]")
	}
	return orders, nil
}

func (c *Client) getJSON(ctx context.Context, url, accessToken string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(transport.ErrTransient, err.Error())
	}
	return transport.DecodeJSON(resp, v)
}
