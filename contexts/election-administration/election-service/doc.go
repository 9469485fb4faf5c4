// Package electionservice implements the election-administration bounded
// context: candidacy review, screening scheduling, the candidate roster,
// campaign moderation, ballot submission, tabulation and the end-of-cycle
// archive/reset.
//
// Business rules live in the domain and application layers. Storage
// (memory, Postgres, Firestore), notification delivery and archive export
// sit behind ports and are chosen by the composition root.
package electionservice
