package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/ingestion"
)

// fixtureBaseTs is 2025-01-04 12:00:00 UTC in ns.
const fixtureBaseTs int64 = 1_735_992_000_000_000_000

// FixtureSummary describes what WriteFixtures produced.
type FixtureSummary struct {
	Swaps      int // distinct swaps
	Duplicates int // swaps repeated in a second crawl file
	NotSwap    int
}

// WriteFixtures writes a deterministic raw crawl under dir in the layout the
// crawler produces: BTC-ETH and ETH-BTC swaps in the BTC/ETH file, DOGE-ETH
// swaps in the ETH/DOGE file which also repeats the first BTC-ETH swaps and
// carries one non-swap action.
//
// Amounts rise with the index so roughly the newer half of each pair clears
// the "0.01" preset. Every swap completes within 20 blocks.
func WriteFixtures(dir string, perPair int) (FixtureSummary, error) {
	btcEth := make([]domain.RawAction, 0, 2*perPair)
	ethDoge := make([]domain.RawAction, 0, perPair+4)
	for i := 0; i < perPair; i++ {
		btcEth = append(btcEth,
			fixtureAction("BE", i, "BTC.BTC", "ETH.ETH", 50_000_000+int64(i)*1_000_000),
			fixtureAction("EB", i, "ETH.ETH", "BTC.BTC", 1_500_000_000+int64(i)*10_000_000))
		ethDoge = append(ethDoge,
			fixtureAction("DE", i, "DOGE.DOGE", "ETH.ETH", 900_000_000_000+int64(i)*4_000_000_000))
	}

	dups := min(3, perPair)
	for i := 0; i < dups; i++ {
		ethDoge = append(ethDoge, btcEth[2*i])
	}
	liquidity := fixtureAction("LP", 0, "ETH.ETH", "DOGE.DOGE", 1)
	liquidity.Type = "addLiquidity"
	liquidity.Metadata = nil
	ethDoge = append(ethDoge, liquidity)

	files := map[string][]domain.RawAction{
		"BTC.BTC,ETH.ETH":   btcEth,
		"ETH.ETH,DOGE.DOGE": ethDoge,
	}
	for assets, actions := range files {
		raws := make([]json.RawMessage, 0, len(actions))
		for _, a := range actions {
			b, err := json.Marshal(a)
			if err != nil {
				return FixtureSummary{}, err
			}
			raws = append(raws, b)
		}
		if err := dataset.AppendRaw(ingestion.RawPath(dir, assets), raws); err != nil {
			return FixtureSummary{}, fmt.Errorf("write fixtures for %s: %w", assets, err)
		}
	}
	return FixtureSummary{Swaps: 3 * perPair, Duplicates: dups, NotSwap: 1}, nil
}

func fixtureAction(prefix string, i int, inAsset, outAsset string, inAmount int64) domain.RawAction {
	height := int64(20_000_000 - i*10)
	date := fixtureBaseTs - int64(i)*60*1_000_000_000
	return domain.RawAction{
		Date:   strconv.FormatInt(date, 10),
		Height: strconv.FormatInt(height, 10),
		Status: domain.StatusSuccess,
		Type:   domain.TypeSwap,
		In: []domain.RawTransfer{{
			Address: "in-" + prefix,
			TxID:    fmt.Sprintf("%sIN%04d", prefix, i),
			Coins:   []domain.RawCoin{{Asset: inAsset, Amount: strconv.FormatInt(inAmount, 10)}},
		}},
		Out: []domain.RawTransfer{{
			Address: "out-" + prefix,
			TxID:    fmt.Sprintf("%sOUT%04d", prefix, i),
			Height:  strconv.FormatInt(height+1+int64(i%20), 10),
			Coins:   []domain.RawCoin{{Asset: outAsset, Amount: strconv.FormatInt(inAmount/2, 10)}},
		}},
		Metadata: &domain.RawMetadata{Swap: &domain.RawSwapMetadata{
			SwapSlip:     strconv.Itoa(5 + i%30),
			LiquidityFee: "1000",
		}},
	}
}
