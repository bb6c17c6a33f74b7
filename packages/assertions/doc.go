// Package assertions checks fetched envelopes against expectations.
//
// An expectation reads "<subject> <operator> [value]", where the subject is a
// capture expression (status, duration, header.<name>, body or body.<path>)
// and the value is JSON when it parses as JSON and a plain string otherwise:
//
//	status == 200
//	header.content-type contains json
//	body.items length 3
//	body.user.email matches /@example\.test$/
//	body.id exists
//	body schema ./user.schema.json
package assertions
