package services

import (
	"fmt"
	"math"

	"github.com/carenest/therapy-booking/internal/models"
)

const basisPoints = 10000

// DiscountBasisPoints returns the multi-session discount for a therapy package
//   - 1 to 3 sessions: none
//   - 4 to 7 sessions: 10%
//   - 8 to 11 sessions: 15%
//   - 12 or more: 20%
func DiscountBasisPoints(sessionCount int) int64 {
	switch {
	case sessionCount >= 12:
		return 2000
	case sessionCount >= 8:
		return 1500
	case sessionCount >= 4:
		return 1000
	}
	return 0
}

// Price computes the fee breakdown of a booking group. It performs no I/O.
// Amounts are whole won; every division rounds half away from zero.
func Price(sessionType models.SessionType, sessionCount int, card models.RateCard, cfg models.SettlementConfig) (models.FeeBreakdown, error) {
	switch sessionType {
	case models.SessionTypeConsultation:
		return priceConsultation(sessionCount, card)
	case models.SessionTypeTherapy:
		return priceTherapy(sessionCount, card, cfg)
	}
	return models.FeeBreakdown{}, models.NewValidationError(fmt.Sprintf("unknown session type %q", sessionType))
}

func priceConsultation(sessionCount int, card models.RateCard) (models.FeeBreakdown, error) {
	if sessionCount != 1 {
		return models.FeeBreakdown{}, models.NewValidationError("a consultation is booked as exactly one session")
	}
	if card.ConsultationFee == nil || card.ConsultationSettlementAmount == nil {
		return models.FeeBreakdown{}, models.NewMissingRateCardError("provider has no consultation fee and settlement amount configured")
	}

	price := *card.ConsultationFee
	settlement := *card.ConsultationSettlementAmount
	if price < 0 || settlement < 0 || settlement > price {
		return models.FeeBreakdown{}, models.NewMissingRateCardError(
			fmt.Sprintf("consultation settlement amount %d exceeds consultation fee %d", settlement, price))
	}

	return models.FeeBreakdown{
		OriginalFee:        price,
		DiscountRate:       0,
		FinalFee:           price,
		PlatformFee:        price - settlement,
		ProviderSettlement: settlement,
	}, nil
}

func priceTherapy(sessionCount int, card models.RateCard, cfg models.SettlementConfig) (models.FeeBreakdown, error) {
	if sessionCount < 1 {
		return models.FeeBreakdown{}, models.NewValidationError("session count must be at least 1")
	}
	if card.PerSessionRate == nil || *card.PerSessionRate <= 0 {
		return models.FeeBreakdown{}, models.NewMissingRateCardError("provider has no per-session rate configured")
	}
	if cfg.PlatformRatePercent < 0 || cfg.PlatformRatePercent > 100 {
		return models.FeeBreakdown{}, fmt.Errorf("platform settlement rate %v%% out of range", cfg.PlatformRatePercent)
	}

	discount := DiscountBasisPoints(sessionCount)
	platformRate := int64(math.Round(cfg.PlatformRatePercent * 100))

	original := *card.PerSessionRate * int64(sessionCount)
	final := mulDivRound(original, basisPoints-discount, basisPoints)
	platform := mulDivRound(final, platformRate, basisPoints)

	return models.FeeBreakdown{
		OriginalFee:        original,
		DiscountRate:       float64(discount) / basisPoints,
		FinalFee:           final,
		PlatformFee:        platform,
		ProviderSettlement: final - platform,
	}, nil
}

// mulDivRound returns round(a*num/den) with halves rounded away from zero
func mulDivRound(a, num, den int64) int64 {
	p := a * num
	if p < 0 {
		return -((-p + den/2) / den)
	}
	return (p + den/2) / den
}
