// Package models defines the core domain models for Lumo.
//
// # Models
//
//   - Participant: a member of the group with a pledged balance and a saved
//     payment method at the payment gateway
//   - Transaction: a single merchant charge split across the group
//   - ParticipantPayment: one participant's slice of a Transaction
//   - Card: display details of a saved payment method
//
// # Design Principles
//
//  1. **Money is decimal**: all amounts are shopspring decimals with two-digit
//     precision; conversion to the gateway's integer minor units happens at the
//     edges (see internal/money).
//  2. **Transactions own their payments**: ParticipantPayments are created with
//     their Transaction and never shared.
//  3. **Weak participant references**: a ParticipantPayment stores the
//     participant id and a name snapshot, so deleting a Participant never
//     touches historical records.
//  4. **Avoid circular references**: relationships use ID strings, not pointers.
package models
