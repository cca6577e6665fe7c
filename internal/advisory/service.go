// Package advisory orchestrates the full assessment pipeline.
//
// One call runs admission control, trust scoring for both parties, risk
// assessment, corridor gating, and the decision recommendation, then
// records the audit trail and emits metrics and realtime events. The
// whole pipeline is advisory: it computes and explains, it never
// executes.
package advisory

import (
	"context"
	"time"

	"github.com/mnbara/advisory/internal/abuse"
	"github.com/mnbara/advisory/internal/audit"
	"github.com/mnbara/advisory/internal/corridor"
	"github.com/mnbara/advisory/internal/decision"
	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/intent"
	"github.com/mnbara/advisory/internal/logging"
	"github.com/mnbara/advisory/internal/metrics"
	"github.com/mnbara/advisory/internal/realtime"
	"github.com/mnbara/advisory/internal/risk"
	"github.com/mnbara/advisory/internal/traces"
	"github.com/mnbara/advisory/internal/trust"
)

// AssessInput is one end-to-end assessment request.
type AssessInput struct {
	RequestID    string
	TravelerID   string
	ActorID      string // admission control key, normally the buyer
	ClientIP     string
	Origin       string
	Destination  string
	ItemValue    float64
	Currency     string
	ItemCategory string
	DeliveryDays int
	MatchScore   float64

	Buyer    trust.Input
	Traveler trust.Input
}

// Result is the combined outcome of one assessment. Sections are nil
// when the corresponding capability is disabled.
type Result struct {
	RequestID        string                   `json:"requestId"`
	Admission        *abuse.CheckResult       `json:"admission,omitempty"`
	BuyerTrust       *trust.Score             `json:"buyerTrust,omitempty"`
	TravelerTrust    *trust.Score             `json:"travelerTrust,omitempty"`
	Risk             *risk.Assessment         `json:"risk,omitempty"`
	Corridor         *corridor.Assessment     `json:"corridor,omitempty"`
	Recommendation   *decision.Recommendation `json:"recommendation,omitempty"`
	Lanes            *decision.Lanes          `json:"lanes,omitempty"`
	ProcessingTimeMs int64                    `json:"processingTimeMs"`
	GeneratedAt      time.Time                `json:"generatedAt"`
}

// Rejected reports whether admission control stopped the pipeline.
func (r *Result) Rejected() bool {
	return r.Admission != nil && !r.Admission.Allowed
}

// Service wires the advisory components into one pipeline.
type Service struct {
	flags       *flags.Flags
	scorer      *trust.Scorer
	assessor    *risk.Assessor
	gate        *corridor.Gate
	recommender *decision.Recommender
	classifier  *intent.Classifier
	guard       *abuse.Guard
	recorder    *audit.Recorder
	hub         *realtime.Hub // optional
	now         func() time.Time
}

// NewService creates the advisory pipeline. The hub may be nil when no
// realtime streaming is wanted.
func NewService(f *flags.Flags, guard *abuse.Guard, recorder *audit.Recorder, hub *realtime.Hub) *Service {
	return &Service{
		flags:       f,
		scorer:      trust.NewScorer(f),
		assessor:    risk.NewAssessor(f),
		gate:        corridor.NewGate(f),
		recommender: decision.NewRecommender(f),
		classifier:  intent.NewClassifier(f),
		guard:       guard,
		recorder:    recorder,
		hub:         hub,
		now:         time.Now,
	}
}

// WithClock overrides the clock for deterministic tests. The clock is
// propagated to every stage.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.scorer = s.scorer.WithClock(now)
	s.assessor = s.assessor.WithClock(now)
	s.gate = s.gate.WithClock(now)
	s.recommender = s.recommender.WithClock(now)
	s.classifier = s.classifier.WithClock(now)
	s.recorder = s.recorder.WithClock(now)
	return s
}

// Assess runs the full pipeline for one transaction.
func (s *Service) Assess(ctx context.Context, in AssessInput) *Result {
	ctx, span := traces.StartSpan(ctx, "advisory.Assess",
		traces.RequestID(in.RequestID),
		traces.CorridorID(in.Origin+"_"+in.Destination))
	defer span.End()

	start := s.now()
	result := &Result{RequestID: in.RequestID, GeneratedAt: start}

	valueUSD := risk.NormalizeToUSD(in.ItemValue, in.Currency)

	// Admission first: a throttled or capped actor gets a reason and
	// suggestions, never a partial assessment.
	if admission := s.guard.CheckOfferFlooding(in.ActorID, in.ClientIP); !admission.Allowed {
		result.Admission = &admission
		s.rejectAdmission(ctx, "offer_flooding", in, admission)
		return result
	}
	admission := s.guard.CheckCorridorVolume(in.Origin+"_"+in.Destination, valueUSD)
	result.Admission = &admission
	if !admission.Allowed {
		s.rejectAdmission(ctx, "corridor_volume", in, admission)
		return result
	}
	if admission.Warning != "" && s.hub != nil {
		s.hub.BroadcastVolumeWarning(map[string]interface{}{
			"corridorId": in.Origin + "_" + in.Destination,
			"warning":    admission.Warning,
		})
	}

	in.Buyer.Role = trust.RoleBuyer
	in.Traveler.Role = trust.RoleTraveler
	result.BuyerTrust = s.scorer.Compute(in.Buyer)
	result.TravelerTrust = s.scorer.Compute(in.Traveler)
	if result.BuyerTrust != nil {
		metrics.TrustScoresTotal.WithLabelValues(string(trust.RoleBuyer), result.BuyerTrust.Level.String()).Inc()
	}
	if result.TravelerTrust != nil {
		metrics.TrustScoresTotal.WithLabelValues(string(trust.RoleTraveler), result.TravelerTrust.Level.String()).Inc()
	}

	result.Risk = s.assessor.Assess(risk.Input{
		RequestID:              in.RequestID,
		ItemValue:              in.ItemValue,
		Currency:               in.Currency,
		BuyerTrust:             result.BuyerTrust,
		TravelerTrust:          result.TravelerTrust,
		OriginCountry:          in.Origin,
		DestinationCountry:     in.Destination,
		ItemCategory:           in.ItemCategory,
		BuyerAccountAgeDays:    ageDays(in.Buyer.AccountCreatedAt, start),
		TravelerAccountAgeDays: ageDays(in.Traveler.AccountCreatedAt, start),
	})
	if result.Risk != nil {
		metrics.RiskAssessmentsTotal.WithLabelValues(result.Risk.OverallRisk.String()).Inc()
	}

	// Corridor gating needs both parties scored; with trust scoring off
	// the section stays nil rather than gating on missing levels.
	if result.BuyerTrust != nil && result.TravelerTrust != nil {
		result.Corridor = s.gate.Assess(corridor.GateInput{
			Origin:        in.Origin,
			Destination:   in.Destination,
			ItemValueUSD:  valueUSD,
			DeliveryDays:  in.DeliveryDays,
			BuyerTrust:    result.BuyerTrust,
			TravelerTrust: result.TravelerTrust,
		})
	}

	if result.BuyerTrust != nil && result.TravelerTrust != nil && result.Risk != nil {
		result.Recommendation = s.recommender.Recommend(decision.Input{
			RequestID:      in.RequestID,
			TravelerID:     in.TravelerID,
			BuyerTrust:     result.BuyerTrust,
			TravelerTrust:  result.TravelerTrust,
			RiskAssessment: result.Risk,
			MatchScore:     in.MatchScore,
		})
	}
	if result.Recommendation != nil {
		metrics.DecisionsTotal.WithLabelValues(result.Recommendation.Action.String()).Inc()
		if result.Corridor != nil {
			lanes := decision.BuildLanes(s.flags, result.Corridor, result.Risk, result.Recommendation)
			result.Lanes = &lanes
		}
	}

	if result.Recommendation != nil {
		span.SetAttributes(traces.DecisionAction(result.Recommendation.Action.String()))
	}
	if result.Risk != nil {
		span.SetAttributes(traces.RiskScore(result.Risk.RiskScore))
	}

	result.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	s.recordAssessment(ctx, in, result, s.now().Sub(start))
	s.broadcastDecision(in, result)

	return result
}

// TrustScore computes a single party's trust score.
func (s *Service) TrustScore(ctx context.Context, in trust.Input) *trust.Score {
	start := s.now()
	score := s.scorer.Compute(in)
	if score != nil {
		metrics.TrustScoresTotal.WithLabelValues(string(score.Role), score.Level.String()).Inc()
	}

	s.recorder.Record(ctx, "trust_score", map[string]any{
		"userId": in.UserID,
		"role":   string(in.Role),
	}, score, s.now().Sub(start), in.UserID)

	return score
}

// ClassifyIntent classifies context signals, behind the intent spam guard.
func (s *Service) ClassifyIntent(ctx context.Context, in intent.Input, actorID, clientIP string) (*intent.Result, *abuse.CheckResult) {
	ctx, span := traces.StartSpan(ctx, "advisory.ClassifyIntent", traces.ActorID(actorID))
	defer span.End()

	if admission := s.guard.CheckIntentSpam(actorID, clientIP); !admission.Allowed {
		metrics.AbuseRejectionsTotal.WithLabelValues("intent_spam").Inc()
		if s.hub != nil {
			s.hub.BroadcastAbuseRejection(map[string]interface{}{
				"check":   "intent_spam",
				"actorId": actorID,
			})
		}
		return nil, &admission
	}

	start := s.now()
	result := s.classifier.Classify(in)
	if result != nil {
		metrics.IntentClassificationsTotal.WithLabelValues(string(result.Intent)).Inc()
	}

	s.recorder.Record(ctx, "classify_intent", map[string]any{
		"pageContext": in.PageContext,
		"action":      in.Action,
		"userRole":    in.UserRole,
	}, result, s.now().Sub(start), actorID)

	return result, nil
}

// CorridorVolume reports current usage against a corridor's daily caps.
func (s *Service) CorridorVolume(corridorID string) abuse.VolumeStatus {
	return s.guard.CorridorVolumeStatus(corridorID)
}

// Corridors lists the configured corridor lanes.
func (s *Service) Corridors() []corridor.Config {
	return corridor.All()
}

// AuditLogs returns recorded audit entries, most recent first.
func (s *Service) AuditLogs(ctx context.Context, q audit.EntryQuery) ([]*audit.Entry, error) {
	return s.recorder.Logs(ctx, q)
}

// AuditSnapshot returns the stored decision snapshot for a request.
func (s *Service) AuditSnapshot(ctx context.Context, requestID string) (*audit.Snapshot, error) {
	return s.recorder.Snapshot(ctx, requestID)
}

// AuditSnapshots returns stored decision snapshots, most recent first.
func (s *Service) AuditSnapshots(ctx context.Context, limit int) ([]*audit.Snapshot, error) {
	return s.recorder.Snapshots(ctx, limit)
}

func (s *Service) rejectAdmission(ctx context.Context, check string, in AssessInput, res abuse.CheckResult) {
	metrics.AbuseRejectionsTotal.WithLabelValues(check).Inc()
	logging.L(ctx).Warn("assessment rejected by abuse guard",
		"check", check,
		"requestId", in.RequestID,
		"reason", res.Reason)
	if s.hub != nil {
		s.hub.BroadcastAbuseRejection(map[string]interface{}{
			"check":      check,
			"requestId":  in.RequestID,
			"corridorId": in.Origin + "_" + in.Destination,
		})
	}
}

func (s *Service) recordAssessment(ctx context.Context, in AssessInput, result *Result, elapsed time.Duration) {
	input := map[string]any{
		"requestId":    in.RequestID,
		"travelerId":   in.TravelerID,
		"origin":       in.Origin,
		"destination":  in.Destination,
		"itemValue":    in.ItemValue,
		"currency":     in.Currency,
		"itemCategory": in.ItemCategory,
		"deliveryDays": in.DeliveryDays,
		"buyerUserId":  in.Buyer.UserID,
	}
	s.recorder.Record(ctx, "assess", input, result, elapsed, in.RequestID)

	snapshot := map[string]any{
		"origin":      in.Origin,
		"destination": in.Destination,
		"itemValue":   in.ItemValue,
		"currency":    in.Currency,
	}
	if result.Recommendation != nil {
		snapshot["action"] = result.Recommendation.Action.String()
		snapshot["confidence"] = result.Recommendation.Confidence
	}
	if result.Risk != nil {
		snapshot["riskScore"] = result.Risk.RiskScore
		snapshot["riskLevel"] = result.Risk.OverallRisk.String()
	}
	if result.BuyerTrust != nil {
		snapshot["buyerTrustLevel"] = result.BuyerTrust.Level.String()
	}
	if result.TravelerTrust != nil {
		snapshot["travelerTrustLevel"] = result.TravelerTrust.Level.String()
	}
	s.recorder.RecordSnapshot(ctx, in.RequestID, "assess", snapshot)
}

func (s *Service) broadcastDecision(in AssessInput, result *Result) {
	if s.hub == nil || result.Recommendation == nil {
		return
	}
	data := map[string]interface{}{
		"requestId":  in.RequestID,
		"corridorId": in.Origin + "_" + in.Destination,
		"action":     result.Recommendation.Action.String(),
		"confidence": result.Recommendation.Confidence,
	}
	if result.Risk != nil {
		data["riskScore"] = float64(result.Risk.RiskScore)
	}
	s.hub.BroadcastDecision(data)
}

func ageDays(createdAt, now time.Time) int {
	if createdAt.IsZero() || createdAt.After(now) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}
