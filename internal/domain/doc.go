// Package domain models historical monthly rainfall, rainfall forecasts and
// the glossary used to explain forecasting terms.
//
// # Data Source
//
// The historical table is the Hyderabad monthly rainfall record published by
// the India Meteorological Department: one row per calendar year starting in
// 1901, twelve monthly totals and an annual total, all in millimetres.
//
// # Table Conventions
//
// Month columns:
//
//	Jan, Feb, Mar, April, May, June, July, Aug, Sept, Oct, Nov, Dec
//	Column names are abbreviated inconsistently in the source, so loaders
//	match them by their first three letters, case-insensitively.
//
// Rows:
//
//	Sorted ascending by Year, one row per year, no gaps, no empty cells.
//	Total is the published annual figure and may differ from the sum of
//	the months by rounding.
//
// # Series Layout
//
// Records are flattened into a [RainfallSeries]: one point per calendar month,
// stamped with the first day of that month at 00:00 UTC, January of the first
// year through December of the last year. See [NewRainfallSeries].
//
// # Forecast Horizon
//
// A forecast to target year Y after last observed year L covers
// (Y-L)*12 - 1 months, ending in November of Y. The missing December matches
// the historical behaviour of the dashboard this service replaces; see
// [ForecastSteps].
package domain
