package main

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/alim08/cryptotrader/pkg/engine"
	"github.com/alim08/cryptotrader/pkg/ledger"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/orderbook"
)

func tickerView(r models.TickerRecord) map[string]interface{} {
	return map[string]interface{}{
		"market":       r.Market,
		"lastPrice":    r.Last(),
		"bid":          r.BidPrice(),
		"ask":          r.AskPrice(),
		"displayPrice": r.DisplayPrice(),
		"inverted":     r.Inverted(),
	}
}

func tickerViews(recs []models.TickerRecord) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(recs))
	for _, r := range recs {
		out = append(out, tickerView(r))
	}
	return out
}

func transactionView(tx models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"id":        tx.ID,
		"type":      string(tx.Type),
		"symbol":    tx.Symbol,
		"amount":    tx.Amount.InexactFloat64(),
		"price":     tx.Price.InexactFloat64(),
		"total":     tx.Total().InexactFloat64(),
		"timestamp": tx.Timestamp,
		"summary":   tx.Summary(),
	}
}

func stateView(s engine.State) map[string]interface{} {
	txs := make([]map[string]interface{}, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		txs = append(txs, transactionView(tx))
	}
	v := map[string]interface{}{
		"query":            s.Query,
		"results":          tickerViews(s.Results),
		"activeSymbol":     s.ActiveSymbol,
		"balance":          s.Wallet.Balance.InexactFloat64(),
		"showTransactions": s.ShowTransactions,
		"transactions":     txs,
		"loading":          s.Loading,
		"error":            s.Error,
		"panel": map[string]interface{}{
			"open":   s.Panel.Open,
			"type":   string(s.Panel.Type),
			"amount": s.Panel.Amount,
			"price":  s.Panel.Price,
		},
	}
	if s.Notice != nil {
		v["notice"] = s.Notice.Message
	}
	if s.Chart != nil {
		v["chartSymbol"] = s.Chart.Symbol
	}
	return v
}

func levelViews(ls []orderbook.Level) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(ls))
	for _, l := range ls {
		out = append(out, map[string]interface{}{"price": l.Price, "amount": l.Amount, "total": l.Total})
	}
	return out
}

// createSchema builds the GraphQL schema over the controller.
func createSchema(ctrl *engine.Controller) (graphql.Schema, error) {
	tickerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ticker",
		Fields: graphql.Fields{
			"market":       &graphql.Field{Type: graphql.String},
			"lastPrice":    &graphql.Field{Type: graphql.Float},
			"bid":          &graphql.Field{Type: graphql.Float},
			"ask":          &graphql.Field{Type: graphql.Float},
			"displayPrice": &graphql.Field{Type: graphql.String},
			"inverted":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	transactionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Transaction",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"type":      &graphql.Field{Type: graphql.String},
			"symbol":    &graphql.Field{Type: graphql.String},
			"amount":    &graphql.Field{Type: graphql.Float},
			"price":     &graphql.Field{Type: graphql.Float},
			"total":     &graphql.Field{Type: graphql.Float},
			"timestamp": &graphql.Field{Type: graphql.String},
			"summary":   &graphql.Field{Type: graphql.String},
		},
	})

	panelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Panel",
		Fields: graphql.Fields{
			"open":   &graphql.Field{Type: graphql.Boolean},
			"type":   &graphql.Field{Type: graphql.String},
			"amount": &graphql.Field{Type: graphql.String},
			"price":  &graphql.Field{Type: graphql.String},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "State",
		Fields: graphql.Fields{
			"query":            &graphql.Field{Type: graphql.String},
			"results":          &graphql.Field{Type: graphql.NewList(tickerType)},
			"activeSymbol":     &graphql.Field{Type: graphql.String},
			"chartSymbol":      &graphql.Field{Type: graphql.String},
			"balance":          &graphql.Field{Type: graphql.Float},
			"showTransactions": &graphql.Field{Type: graphql.Boolean},
			"transactions":     &graphql.Field{Type: graphql.NewList(transactionType)},
			"panel":            &graphql.Field{Type: panelType},
			"loading":          &graphql.Field{Type: graphql.Boolean},
			"error":            &graphql.Field{Type: graphql.String},
			"notice":           &graphql.Field{Type: graphql.String},
		},
	})

	levelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Level",
		Fields: graphql.Fields{
			"price":  &graphql.Field{Type: graphql.Float},
			"amount": &graphql.Field{Type: graphql.Float},
			"total":  &graphql.Field{Type: graphql.Float},
		},
	})

	orderBookType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OrderBook",
		Fields: graphql.Fields{
			"market":  &graphql.Field{Type: graphql.String},
			"asks":    &graphql.Field{Type: graphql.NewList(levelType)},
			"current": &graphql.Field{Type: levelType},
			"bids":    &graphql.Field{Type: graphql.NewList(levelType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"state": &graphql.Field{
				Type: stateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return stateView(ctrl.State()), nil
				},
			},
			"tickers": &graphql.Field{
				Type: graphql.NewList(tickerType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return tickerViews(ctrl.State().Results), nil
				},
			},
			"orderBook": &graphql.Field{
				Type: orderBookType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := ctrl.OrderBook()
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"market": b.Market,
						"asks":   levelViews(b.Asks),
						"current": map[string]interface{}{
							"price": b.Current.Price, "amount": b.Current.Amount, "total": b.Current.Total,
						},
						"bids": levelViews(b.Bids),
					}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"search": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ctrl.SetQuery(p.Args["query"].(string))
					return stateView(ctrl.State()), nil
				},
			},
			"selectSymbol": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"symbol": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ctrl.SelectSymbol(p.Args["symbol"].(string))
					return stateView(ctrl.State()), nil
				},
			},
			"confirmTrade": &graphql.Field{
				Type: transactionType,
				Args: graphql.FieldConfigArgument{
					"type":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"amount": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"price":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					typ, err := models.ParseTradeType(p.Args["type"].(string))
					if err != nil {
						return nil, err
					}
					ctrl.OpenTradingPanel(typ)
					ctrl.SetAmount(p.Args["amount"].(string))
					ctrl.SetPrice(p.Args["price"].(string))
					tx, err := ctrl.ConfirmTrade()
					if err != nil {
						return nil, errors.New(ledger.Message(err))
					}
					return transactionView(tx), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}
