// Package domain models hourly electricity spot prices and the per-hour
// classification ("refined") records derived from them.
//
// # Data Source
//
// Prices live in the InfluxDB measurement price_info, one point per hour,
// tagged with the local calendar date:
//
//	SELECT price, hour FROM price_info WHERE date = '2024-04-26'
//
// A day normally has 24 rows but the upstream feed can be incomplete, so a
// [PriceSeries] is used exactly as returned: unsorted, possibly short.
//
// # Dates and Time Zones
//
// "Today" and "Tomorrow" are resolved in a fixed local zone (the market's,
// not UTC) by [Calendar]. Refined rows are stamped with the start of their
// hour in that zone and tagged with the same YYYY-MM-DD date.
//
// # Ranking
//
// Windows are inclusive on both ends: Window{Start: 5, Stop: 6} covers hours
// 5 and 6. Ranking is a stable sort by price, so equal prices keep the order
// the store returned them in. NaN prices compare as equal to everything.
//
// # Relative Thresholds
//
// Bands are expressed against the daily average. Bounds above 1 are
// percentages (115 = 1.15), bounds at or below 1 are fractions. Membership is
// strict on both ends.
//
// # Refined Fields
//
//	pris_snitt_24     daily average price
//	pris_time         price at the hour
//	pris_forhold_24   price / average
//	pris_max/min      hour index of the daily max/min price
//	in_6_l_8          top 8 but not top 2 of hours 0-8
//	in_<a>_<b>_high   top 3 of the quarter [a,b)
//	t<a>_<b>          strictly between a% and b% of the average
//	i8h_low           among the 8 cheapest hours of the day
package domain
