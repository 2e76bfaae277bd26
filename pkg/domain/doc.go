/*
Package domain contains the core models of the formflow runtime.

It defines the declarative form (FormDefinition, FieldDefinition), the answers a
respondent gives (AnswerMap), the step partition (Step), the navigation position
(NavigationState) and the persisted recovery snapshot (Progress). This package is
kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - FieldDefinition: one typed question with its constraints.
  - FormDefinition: the ordered list of fields; page breaks split it into steps.
  - NavigationState: current step plus visited/completed sets and per-step errors.
  - Progress: the whole-snapshot record written to durable storage.
*/
package domain
