package sqlinline

const QInsertRecurringBoleto = `--sql 409689f3-8818-4954-be8d-102f38da545f
insert into recurring_boletos(email, amount_cents, frequency, payment_intent_id, last_paid_at, next_due_at, created_at, active)
values ($1::text, $2::bigint, $3::text, nullif($4::text, ''), null, null, now(), true)
returning id, created_at;
`

const QListRecurringBoletos = `--sql 8330d25d-2316-4596-8e65-7c50e33b7418
select id, email, amount_cents, frequency, coalesce(payment_intent_id, ''), last_paid_at, next_due_at, created_at, active
from recurring_boletos
order by created_at desc
limit $1::int;
`

const QSelectDueBoletos = `--sql 963829eb-0ce5-43cd-a7b8-2aaf71ae8eff
select id, email, amount_cents, frequency, coalesce(payment_intent_id, ''), last_paid_at, next_due_at, created_at, active
from recurring_boletos
where active = true
  and next_due_at is not null
  and next_due_at <= $1::timestamptz
order by next_due_at asc;
`

const QSelectActiveBoletoByIntent = `--sql a9c42142-d7a5-47f2-8787-75c9b64cda58
select id, email, amount_cents, frequency, coalesce(payment_intent_id, ''), last_paid_at, next_due_at, created_at, active
from recurring_boletos
where payment_intent_id = $1::text
  and active = true
limit 1;
`

// QUpdateBoletoIssued touches only the scheduler's columns.
const QUpdateBoletoIssued = `--sql 47c695de-9f72-4a53-a1f6-edbaf04f2c0e
update recurring_boletos
set payment_intent_id = $2::text,
    next_due_at = $3::timestamptz
where id = $1::bigint
  and active = true;
`

// QUpdateBoletoPaid touches only the ingestion columns.
const QUpdateBoletoPaid = `--sql f0d6be0d-5a83-4c43-a646-23d7aede8373
update recurring_boletos
set last_paid_at = $2::timestamptz,
    next_due_at = $3::timestamptz
where id = $1::bigint
  and active = true;
`
