package launch

import (
	"fmt"
	"math/big"

	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/workflow"
)

// Durable result keys. Addresses are extracted from receipts; the param keys
// seed the workflow so a restored flow can rebuild its writes.
const (
	ResultProviderAddress = "provider_address"
	ResultCurveAddress    = "curve_address"
	ResultTokenAddress    = "token_address"
	ResultRecordID        = "record_id"

	paramName        = "project_name"
	paramSymbol      = "project_symbol"
	paramDescription = "project_description"
	paramImageKey    = "image_key"
	paramSeedAmount  = "seed_amount"
)

// launchSteps declares the provider launch flow:
// deploy -> activate -> approve seed spend -> deploy curve -> register.
func (s *Service) launchSteps(owner string, seed *big.Int) []workflow.Step {
	if seed == nil {
		seed = big.NewInt(0)
	}

	return []workflow.Step{
		workflow.ActionStep("deploy-provider", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				name, _ := wf.Result(paramName)
				symbol, _ := wf.Result(paramSymbol)
				return chain.WriteRequest{
					Contract: s.contracts.ProviderFactory,
					Method:   "deployProvider",
					Params: []chain.ContractParam{
						chain.Hash160Param(owner),
						chain.StringParam(name),
						chain.StringParam(symbol),
					},
					Signer: owner,
				}, nil
			},
			Extract: func(receipt *chain.Receipt, set func(k, v string)) {
				set(ResultProviderAddress, receipt.DeployedAddress)
			},
		}),

		workflow.ActionStep("activate-provider", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				provider, ok := wf.Result(ResultProviderAddress)
				if !ok {
					return chain.WriteRequest{}, fmt.Errorf("provider address not yet extracted")
				}
				return chain.WriteRequest{
					Contract: provider,
					Method:   "activate",
					Signer:   owner,
				}, nil
			},
		}),

		workflow.ApprovalStep("approve-curve-seed", workflow.ApprovalSpec{
			Token:    s.contracts.PaymentToken,
			Spender:  s.contracts.CurveFactory,
			Required: seed,
			Build: func(wf *workflow.Workflow) chain.WriteRequest {
				return chain.WriteRequest{
					Contract: s.contracts.PaymentToken,
					Method:   "approve",
					Params: []chain.ContractParam{
						chain.Hash160Param(owner),
						chain.Hash160Param(s.contracts.CurveFactory),
						chain.IntegerParam(seed.String()),
					},
					Signer: owner,
				}
			},
		}),

		workflow.ActionStep("deploy-curve", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				provider, ok := wf.Result(ResultProviderAddress)
				if !ok {
					return chain.WriteRequest{}, fmt.Errorf("provider address not yet extracted")
				}
				return chain.WriteRequest{
					Contract: s.contracts.CurveFactory,
					Method:   "deployCurve",
					Params: []chain.ContractParam{
						chain.Hash160Param(provider),
						chain.IntegerParam(seed.String()),
					},
					Signer: owner,
				}, nil
			},
			Extract: func(receipt *chain.Receipt, set func(k, v string)) {
				set(ResultCurveAddress, receipt.CurveAddress)
				set(ResultTokenAddress, receipt.TokenAddress)
			},
		}),

		workflow.ExternalStep("register-metadata", s.registerMetadata),
	}
}

// buySteps gates the buy behind a payment-token approval for the quoted cost.
func (s *Service) buySteps(req TradeRequest) []workflow.Step {
	return []workflow.Step{
		workflow.ApprovalStep("approve-payment", workflow.ApprovalSpec{
			Token:    s.contracts.PaymentToken,
			Spender:  req.Curve,
			Required: req.Cost,
			Build: func(wf *workflow.Workflow) chain.WriteRequest {
				return approveWrite(s.contracts.PaymentToken, req.Owner, req.Curve, req.Cost)
			},
		}),
		workflow.ActionStep("buy", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				return chain.WriteRequest{
					Contract: req.Curve,
					Method:   "buy",
					Params: []chain.ContractParam{
						chain.Hash160Param(req.Owner),
						chain.IntegerParam(req.Amount.String()),
					},
					Signer: req.Owner,
				}, nil
			},
		}),
	}
}

// sellSteps gates the sell behind a project-token approval for the amount sold.
func (s *Service) sellSteps(req TradeRequest) []workflow.Step {
	return []workflow.Step{
		workflow.ApprovalStep("approve-token", workflow.ApprovalSpec{
			Token:    req.Token,
			Spender:  req.Curve,
			Required: req.Amount,
			Build: func(wf *workflow.Workflow) chain.WriteRequest {
				return approveWrite(req.Token, req.Owner, req.Curve, req.Amount)
			},
		}),
		workflow.ActionStep("sell", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				return chain.WriteRequest{
					Contract: req.Curve,
					Method:   "sell",
					Params: []chain.ContractParam{
						chain.Hash160Param(req.Owner),
						chain.IntegerParam(req.Amount.String()),
					},
					Signer: req.Owner,
				}, nil
			},
		}),
	}
}

func (s *Service) withdrawSteps(owner, provider string) []workflow.Step {
	return []workflow.Step{
		workflow.ActionStep("withdraw-fees", workflow.ActionSpec{
			Build: func(wf *workflow.Workflow) (chain.WriteRequest, error) {
				return chain.WriteRequest{
					Contract: provider,
					Method:   "withdrawFees",
					Params:   []chain.ContractParam{chain.Hash160Param(owner)},
					Signer:   owner,
				}, nil
			},
		}),
	}
}

func approveWrite(token, owner, spender string, amount *big.Int) chain.WriteRequest {
	return chain.WriteRequest{
		Contract: token,
		Method:   "approve",
		Params: []chain.ContractParam{
			chain.Hash160Param(owner),
			chain.Hash160Param(spender),
			chain.IntegerParam(amount.String()),
		},
		Signer: owner,
	}
}
