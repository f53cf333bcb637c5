package sqlinline

// QAcquireLease takes the lease when it is free, expired, or already ours.
// No returned row means another holder owns it.
const QAcquireLease = `--sql 8788c93a-7794-4a66-a628-9843de29bd2f
insert into scheduler_leases(name, holder, expires_at)
values ($1::text, $2::text, $3::timestamptz)
on conflict (name) do update set
    holder = excluded.holder,
    expires_at = excluded.expires_at
where scheduler_leases.expires_at <= $4::timestamptz
   or scheduler_leases.holder = excluded.holder
returning holder;
`

const QReleaseLease = `--sql f77408f1-cb25-4368-afe1-c441874fbcd1
delete from scheduler_leases
where name = $1::text
  and holder = $2::text;
`
