// Package domain models coastal sea-state risk: the wave period samples viewers
// watch, the tier they are classified into, the predictions returned by the
// external model service, and the emergency alerts authorities broadcast.
//
// # Risk Samples
//
// A RiskSample carries the peak wave period in seconds. Samples come from a
// RiskSampleSource: either the simulated sampler (uniform in [5, 22) seconds,
// rounded to two decimals, every four seconds) or a device feed.
//
// # Tier Classification
//
// Classify maps a period to a tier with fixed thresholds shared by every role:
//
//	period <= 14s       Safe
//	14s < period <= 17s Caution
//	period > 17s        Danger
//
// Local classification is advisory. Authoritative Danger comes from the
// prediction service ("Kallakkadal" label) and the alerts it triggers.
//
// # Prediction Features
//
// The prediction service expects the six buoy measurements keyed as the model
// was trained (Hs, Hmax, Tz, Tp, "Peak Direction", SST) plus derived features:
//
//	hour, month                      local wall clock at request time
//	day_of_year_sin/cos              sin/cos(2π·dayOfYear/365)
//	Hs_rolling_6h, Tp_rolling_6h     latest Hs and Tp
//
// # Alert Wire Format
//
// Alerts travel as a flat JSON object {"message": "..."}; nothing else is on the
// wire. Authorities publish on authority_alert; subscribers receive on locals_alert.
package domain
