// Package domain models traffic count data collected by automatic traffic
// recorders and turns individual vehicle observations into 15-minute binned
// summaries.
//
// # Data Source
//
// Counters (StarNext/Jamar) are deployed for a count session identified by a
// record number. Each vehicle passing the counter produces one observation
// with a date, a time, the channel (lane) it was detected on, an FHWA vehicle
// class code and a speed in mph. The file's name carries the count metadata:
//
//	technician-recordnum-directions-counterid-speedlimit.txt
//	e.g. "rc-166905-ew-40972-35.txt"
//
// Channel 1 is the first direction in the name, channel 2 the second (if any).
//
// # Vehicle Classes
//
// Classes follow the FHWA 13-category scheme:
//
//	https://www.fhwa.dot.gov/policyinformation/tmguide/tmg_2013/vehicle-types.cfm
//
// Codes 1-13 map to the named classes. Codes 0 and 14 are unclassified and are
// stored in the c15 column. An unclassified vehicle is ALSO counted in c2
// (passenger cars), so summing c1 through c15 double-counts unclassified
// vehicles. Total counts each vehicle once.
//
// # Speed Ranges
//
// Fourteen ranges, s1 through s14: 0-15 mph, then 5 mph ranges up to 75 mph,
// then more than 75 mph. Upper bounds are inclusive: 20.0 is s2, 20.1 is s3.
//
// # Binning
//
// Observations are grouped by (date and time floored to :00, :15, :30 or :45,
// channel). The first and last bins of a count are usually partial periods;
// they are stored as observed, without completeness checks. Hourly volumes
// derived from the bins have the same property.
package domain
