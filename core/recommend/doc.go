// Package recommend ranks charging stations for a user.
//
// A request flows through four stages: the station.Normalizer turns raw
// records into canonical stations, the Filter applies the hard constraints
// of the user preferences, a Scorer assigns a predicted rating and the
// Ranker orders and truncates the result. ModelScorer delegates rating to an
// external model and falls back to RuleScorer whenever the model cannot
// answer in time. Engine wires the stages together and reports each outcome
// on the event bus and to the record store.
package recommend
