package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/chain"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

// AuthorizeHandler dry-runs the validator predicates over a decoded
// transaction body, so transaction builders can check a spend before
// broadcasting it.
type AuthorizeHandler struct {
	params chain.Params
	logger zerolog.Logger
}

func NewAuthorizeHandler(cfg config.ChainConfig, logger zerolog.Logger) *AuthorizeHandler {
	return &AuthorizeHandler{
		params: chain.Params{
			MinOutputLovelace: cfg.MinOutputLovelace,
			RefundLovelace:    cfg.RefundLovelace,
			MaxValidityWindow: int64(cfg.MaxValidityWindow.Seconds()),
		},
		logger: logger,
	}
}

type authorizeDatum struct {
	Type           string `json:"type" binding:"required"`
	WalletAddress  string `json:"wallet_address"`
	UserID         string `json:"user_id,omitempty"`
	AuthCommitment string `json:"auth_commitment,omitempty"`
	Amount         uint64 `json:"amount,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

type authorizeTxInput struct {
	Address  string `json:"address"`
	Lovelace uint64 `json:"lovelace"`
}

type authorizeTx struct {
	Inputs          []authorizeTxInput `json:"inputs"`
	Outputs         []authorizeTxInput `json:"outputs"`
	RequiredSigners []string           `json:"required_signers"`
	ValidFrom       int64              `json:"valid_from"`
	ValidTo         int64              `json:"valid_to"`
}

type authorizeRequest struct {
	Redeemer string         `json:"redeemer" binding:"required"`
	Datum    authorizeDatum `json:"datum" binding:"required"`
	Tx       authorizeTx    `json:"tx" binding:"required"`
}

func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	redeemer, ok := chain.ParseRedeemer(req.Redeemer)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "unrecognized redeemer: " + req.Redeemer,
		})
		return
	}

	datum, err := req.Datum.toDatum()
	if err != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err,
		})
		return
	}

	tx := req.Tx.toTxBody()
	if authErr := chain.Authorize(h.params, datum, redeemer, tx); authErr != nil {
		h.logger.Debug().
			Str("redeemer", req.Redeemer).
			Str("wallet", datum.Wallet()).
			Str("reason", authErr.Error()).
			Msg("Spend authorization rejected")
		c.JSON(http.StatusOK, gin.H{
			"authorized": false,
			"reason":     authErr.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorized": true})
}

func (d *authorizeDatum) toDatum() (chain.Datum, string) {
	switch d.Type {
	case "signup":
		return chain.SignupDatum{
			WalletAddress:  d.WalletAddress,
			UserID:         d.UserID,
			AuthCommitment: d.AuthCommitment,
			CreatedAt:      d.Timestamp,
		}, ""
	case "refund":
		return chain.RefundDatum{
			WalletAddress: d.WalletAddress,
			Amount:        d.Amount,
			Reason:        d.Reason,
			RefundedAt:    d.Timestamp,
		}, ""
	case "deletion":
		return chain.DeleteDatum{
			WalletAddress: d.WalletAddress,
			RequestedAt:   d.Timestamp,
		}, ""
	default:
		return nil, "unrecognized datum type: " + d.Type
	}
}

func (t *authorizeTx) toTxBody() *chain.TxBody {
	body := &chain.TxBody{
		RequiredSigners: t.RequiredSigners,
		ValidFrom:       t.ValidFrom,
		ValidTo:         t.ValidTo,
	}
	for _, in := range t.Inputs {
		body.Inputs = append(body.Inputs, chain.TxInput{Address: in.Address, Lovelace: in.Lovelace})
	}
	for _, out := range t.Outputs {
		body.Outputs = append(body.Outputs, chain.TxOutput{Address: out.Address, Lovelace: out.Lovelace})
	}
	return body
}
