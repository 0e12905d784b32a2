// Package userstore holds shopper and staff accounts, their coin balances and
// the single-use referral codes they hand out.
//
// Two implementations satisfy [Store]: [Memory] for tests and local runs, and
// [Postgres] backed by a pgx pool. [Migrate] applies the embedded schema.
package userstore
